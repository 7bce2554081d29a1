package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
)

var (
	ErrCaptureUnavailable = errors.New("speech capture unavailable")
	ErrCaptureAborted     = errors.New("speech capture aborted")
)

const DefaultNoSpeechTimeout = 8 * time.Second

// captureChannel runs one capture session at a time over the speech-to-text
// client and the optional microphone. Each session ends with exactly one
// terminal event unless it is stopped.
type captureChannel struct {
	stt             SpeechToText
	input           AudioInput
	encoding        audio.EncodingInfo
	noSpeechTimeout time.Duration

	emitEvent eventEmitter

	// openMu serializes opening the clients.
	openMu sync.Mutex

	mu          sync.Mutex
	active      bool
	opening     bool
	generation  uint64
	heardSpeech bool
	timer       *time.Timer
	cancel      context.CancelFunc
}

func newCaptureChannel() *captureChannel {
	return &captureChannel{
		encoding:        audio.GetDefaultEncodingInfo(),
		noSpeechTimeout: DefaultNoSpeechTimeout,
		emitEvent:       noopEventEmitter,
	}
}

func (c *captureChannel) isConfigured() bool {
	return c != nil && c.stt != nil
}

func (c *captureChannel) SetEventEmitter(emitEvent eventEmitter) {
	if emitEvent != nil {
		c.emitEvent = emitEvent
	} else {
		c.emitEvent = noopEventEmitter
	}
}

func (c *captureChannel) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start begins a capture session tagged with generation and returns once
// the speech-to-text stream is open.
func (c *captureChannel) Start(ctx context.Context, generation uint64) error {
	sessionCtx, ok, err := c.reserve(ctx, generation)
	if err != nil || !ok {
		return err
	}
	return c.open(sessionCtx, generation)
}

// reserve claims the channel for generation without touching the clients. It
// reports false when a session is already active.
func (c *captureChannel) reserve(ctx context.Context, generation uint64) (context.Context, bool, error) {
	if !c.isConfigured() {
		return nil, false, ErrCaptureUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		logger.Debug("capture already active", "generation", c.generation)
		return nil, false, nil
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	c.active = true
	c.opening = true
	c.generation = generation
	c.heardSpeech = false
	c.cancel = cancel
	return sessionCtx, true, nil
}

// open connects the clients of a reserved session. Sessions open one at a
// time, so a session stopped while dialing is torn down before the next one
// dials. Stopping a session that is still opening leaves the teardown to
// open.
func (c *captureChannel) open(ctx context.Context, generation uint64) error {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	if !c.isCurrent(generation) {
		return nil
	}

	err := c.stt.Transcribe(ctx,
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) { c.onInterim(generation, transcript) }),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			c.finish(generation, events.NewUserTranscriptFinal(generation, transcript))
		}),
		speechtotext.WithSpeechStartedCallback(func() { c.onSpeech(generation) }),
		speechtotext.WithErrorCallback(func(err error) {
			c.finish(generation, events.NewCaptureFailed(generation, events.CaptureFailureOther, err))
		}),
		speechtotext.WithClosedCallback(func() {
			c.finish(generation, events.NewCaptureEnded(generation))
		}),
		speechtotext.WithEncodingInfo(c.encoding),
	)
	if err != nil {
		c.deactivate(generation)
		return fmt.Errorf("failed to start transcribing: %w", err)
	}

	if c.input != nil {
		if err := c.input.StartCapture(ctx, func(audio []byte) { c.sendAudio(generation, audio) }); err != nil {
			c.deactivate(generation)
			c.stopClients()
			return fmt.Errorf("failed to start audio input: %w", err)
		}
	}

	c.mu.Lock()
	current := c.active && c.generation == generation
	if current {
		c.opening = false
		c.timer = time.AfterFunc(c.noSpeechTimeout, func() { c.onNoSpeech(generation) })
	}
	c.mu.Unlock()

	if !current {
		c.stopClients()
	}
	return nil
}

// Stop ends the current session without a terminal event. Calling it while
// inactive does nothing.
func (c *captureChannel) Stop() {
	if c == nil {
		return
	}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	stopClients := c.releaseLocked()
	c.mu.Unlock()

	if stopClients {
		c.stopClients()
	}
}

// Abort ends the session of generation with an aborted capture failure.
func (c *captureChannel) Abort(generation uint64) {
	c.finish(generation, events.NewCaptureFailed(generation, events.CaptureFailureAborted, ErrCaptureAborted))
}

// SendAudio forwards externally captured audio to the current session.
func (c *captureChannel) SendAudio(audio []byte) error {
	c.mu.Lock()
	active, generation := c.active, c.generation
	c.mu.Unlock()
	if !active {
		return nil
	}
	return c.forward(generation, audio)
}

func (c *captureChannel) sendAudio(generation uint64, audio []byte) {
	if err := c.forward(generation, audio); err != nil {
		logger.Debug("failed to forward captured audio", "error", err)
	}
}

func (c *captureChannel) forward(generation uint64, audio []byte) error {
	if !c.isCurrent(generation) {
		return nil
	}
	if err := c.stt.SendAudio(audio); err != nil {
		return fmt.Errorf("failed to send audio to speech-to-text: %w", err)
	}
	return nil
}

func (c *captureChannel) isCurrent(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && c.generation == generation
}

func (c *captureChannel) onInterim(generation uint64, transcript string) {
	if transcript == "" || !c.isCurrent(generation) {
		return
	}
	c.onSpeech(generation)
	c.emitEvent(events.NewUserTranscriptInterim(generation, transcript))
}

func (c *captureChannel) onSpeech(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.generation != generation || c.heardSpeech {
		return
	}
	c.heardSpeech = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *captureChannel) onNoSpeech(generation uint64) {
	c.mu.Lock()
	silent := c.active && c.generation == generation && !c.heardSpeech
	c.mu.Unlock()
	if !silent {
		return
	}
	c.finish(generation, events.NewCaptureFailed(generation, events.CaptureFailureNoSpeech, nil))
}

// finish emits the terminal event of a session. Only the first terminal event
// of the current session is emitted.
func (c *captureChannel) finish(generation uint64, terminal events.Event) {
	c.mu.Lock()
	if !c.active || c.generation != generation {
		c.mu.Unlock()
		return
	}
	stopClients := c.releaseLocked()
	c.mu.Unlock()

	if stopClients {
		c.stopClients()
	}
	c.emitEvent(terminal)
}

// deactivate ends a session that failed to open. The caller owns the
// client teardown.
func (c *captureChannel) deactivate(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active && c.generation == generation {
		c.releaseLocked()
	}
}

// releaseLocked ends the current session. It reports whether the caller has
// to stop the clients, which is not the case while the session is opening.
func (c *captureChannel) releaseLocked() (stopClients bool) {
	stopClients = !c.opening
	c.active = false
	c.opening = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return stopClients
}

func (c *captureChannel) stopClients() {
	if c.input != nil {
		if err := c.input.StopCapture(); err != nil {
			logger.Warn("failed to stop audio input", "error", err)
		}
	}
	if err := c.stt.StopStream(); err != nil {
		logger.Warn("failed to stop speech-to-text stream", "error", err)
	}
}
