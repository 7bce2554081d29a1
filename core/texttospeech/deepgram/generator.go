package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrGeneratorClosed    = errors.New("speech generator closed")
	ErrGeneratorCancelled = errors.New("speech generator cancelled")
	ErrTextComplete       = errors.New("speech generator text already completed")
)

type speechGenerator struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	// segments holds text between marks. The first segment is the one
	// deepgram is currently generating.
	segments []string
	mu       sync.Mutex

	options texttospeech.TextToSpeechOptions

	// headFlushed is set once a flush was requested for the first segment.
	headFlushed  bool
	textComplete bool
	cancelled    bool
	closed       bool
	finished     bool

	span trace.Span
}

// NewSpeechGenerator opens a speak stream. Audio is delivered through the
// callbacks in opts.
func (c *TextToSpeechClient) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	options := texttospeech.Apply(opts...)
	if err := checkEncoding(options.EncodingInfo); err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	ws, err := c.dial(ctx, options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	_, span := tracer.Start(ctx, "generate speech",
		trace.WithAttributes(attribute.String("tts.voice", string(c.voice))))
	gen := &speechGenerator{ws: ws, options: options, span: span}
	go gen.processIncomingMessages()

	return gen, nil
}

func (c *TextToSpeechClient) dial(ctx context.Context, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	speakURL, err := c.speakURL(encodingInfo)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL,
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func (c *TextToSpeechClient) speakURL(encodingInfo audio.EncodingInfo) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	query := u.Query()
	query.Set("encoding", encodingInfo.Format.Name())
	query.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	query.Set("model", string(c.voice))
	query.Set("container", "none")
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func checkEncoding(encoding audio.EncodingInfo) error {
	switch encoding.Format {
	case audio.FormatLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 24000, 32000, 48000:
			return nil
		}
	case audio.FormatMulaw, audio.FormatALaw:
		switch encoding.SampleRate {
		case 8000, 16000:
			return nil
		}
	default:
		return fmt.Errorf("unsupported encoding %q", encoding.Format)
	}
	return fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format)
}

func (g *speechGenerator) processIncomingMessages() {
	for {
		msgType, msg, err := g.ws.ReadMessage()
		if err != nil {
			g.mu.Lock()
			expected := g.closed || g.finished
			g.mu.Unlock()

			if !expected {
				logger.Error("speak websocket closed before speech ended", "error", err)
				g.fail(fmt.Errorf("speak stream failed: %w", err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			g.options.SpeechAudioCallback(msg)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("unparsable speak message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				g.handleFlushed()
			case "Warning":
				logger.Warn("speak stream warning", "message", string(msg))
			}
		}
	}
}

// handleFlushed reports the finished segment and moves on to the next one.
// Callbacks run after the lock is released.
func (g *speechGenerator) handleFlushed() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}

	g.headFlushed = false
	var marked *string
	if len(g.segments) > 0 {
		marked = &g.segments[0]
		g.segments = g.segments[1:]
	}

	ended := false
	if len(g.segments) == 0 && g.textComplete {
		g.finished = true
		ended = true
		_ = g.closeLocked()
	} else if len(g.segments) > 0 {
		// deepgram sometimes drops text sent right after a flush, so the
		// next segment is only sent once the previous one is confirmed
		if g.segments[0] != "" {
			if err := g.write(speakMsg(g.segments[0])); err != nil {
				logger.Error("failed to send speak text", "error", err)
			}
		}
		if len(g.segments) > 1 || g.textComplete {
			g.flushHeadLocked()
		}
	}
	g.mu.Unlock()

	if marked != nil {
		g.options.SpeechMarkCallback(*marked)
	}
	if ended {
		g.options.SpeechEndedCallback()
	}
}

func (g *speechGenerator) flushHeadLocked() {
	if g.headFlushed {
		return
	}
	if err := g.write(flushMsg); err != nil {
		logger.Error("failed to flush speak stream", "error", err)
		return
	}
	g.headFlushed = true
}

func (g *speechGenerator) checkWritable() error {
	switch {
	case g.closed:
		return ErrGeneratorClosed
	case g.cancelled:
		return ErrGeneratorCancelled
	case g.textComplete:
		return ErrTextComplete
	}
	return nil
}

func (g *speechGenerator) SendText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkWritable(); err != nil {
		return err
	}

	if len(g.segments) == 0 {
		g.segments = append(g.segments, "")
	}
	if len(g.segments) == 1 {
		if err := g.write(speakMsg(text)); err != nil {
			return fmt.Errorf("failed to send speak text: %w", err)
		}
	}
	g.segments[len(g.segments)-1] += text
	return nil
}

func (g *speechGenerator) Mark() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkWritable(); err != nil {
		return err
	}

	if len(g.segments) == 1 && !g.headFlushed {
		if err := g.write(flushMsg); err != nil {
			return fmt.Errorf("failed to flush speak stream: %w", err)
		}
		g.headFlushed = true
	}
	g.segments = append(g.segments, "")
	return nil
}

func (g *speechGenerator) EndOfText() error {
	g.mu.Lock()
	ended := false
	defer func() {
		g.mu.Unlock()
		if ended {
			g.options.SpeechEndedCallback()
		}
	}()

	if g.closed {
		return ErrGeneratorClosed
	} else if g.cancelled {
		return ErrGeneratorCancelled
	} else if g.textComplete {
		return nil
	}

	g.textComplete = true
	if len(g.segments) > 0 && g.segments[len(g.segments)-1] == "" {
		g.segments = g.segments[:len(g.segments)-1]
	}

	switch {
	case len(g.segments) == 0:
		g.finished = true
		ended = true
		return g.closeLocked()
	case len(g.segments) == 1 && !g.headFlushed:
		if err := g.write(flushMsg); err != nil {
			return fmt.Errorf("failed to flush speak stream: %w", err)
		}
		g.headFlushed = true
	}
	return nil
}

func (g *speechGenerator) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.cancelled {
		return nil
	}

	g.cancelled = true
	g.span.AddEvent("cancelled")
	if err := g.write(clearMsg); err != nil {
		logger.Debug("failed to clear speak stream", "error", err)
	}
	return g.closeLocked()
}

func (g *speechGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closeLocked()
}

func (g *speechGenerator) fail(err error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.span.RecordError(err)
	_ = g.closeLocked()
	g.mu.Unlock()

	g.options.ErrorCallback(err)
}

func (g *speechGenerator) closeLocked() error {
	if g.closed {
		return nil
	}

	err := g.write(closeMsg)
	g.closed = true
	g.span.End()
	if closeErr := g.ws.Close(); closeErr != nil && err != nil {
		return fmt.Errorf("failed to close websocket: %w", errors.Join(err, closeErr))
	}
	return nil
}

type controlMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = controlMessage{Type: "Flush"}
	clearMsg = controlMessage{Type: "Clear"}
	closeMsg = controlMessage{Type: "Close"}
)

func speakMsg(text string) controlMessage {
	return controlMessage{Type: "Speak", Text: text}
}

func (g *speechGenerator) write(msg controlMessage) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	if g.closed {
		return ErrGeneratorClosed
	}
	if err := g.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
