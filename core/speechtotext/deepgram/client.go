// Package deepgram implements streaming speech-to-text over Deepgram's
// listen websocket.
package deepgram

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-assistant/core/speechtotext/deepgram")

const (
	DefaultEndpoint = "wss://api.deepgram.com/v1/listen"
	DefaultModel    = "nova-3"
	DefaultLanguage = "en-US"
)

var ErrAlreadyTranscribing = errors.New("transcription already running")

type TranscriptionClient struct {
	apiKey   string
	endpoint string
	model    string
	language string

	conn     *websocket.Conn
	connMu   sync.Mutex
	stopping atomic.Bool

	// lastAudio holds the unix nano time of the last audio chunk sent.
	lastAudio atomic.Int64

	accumulatedTranscript string
	unendedSegment        bool
}

type ClientOption func(*TranscriptionClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		if apiKey != "" {
			c.apiKey = apiKey
		}
	}
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *TranscriptionClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		if language != "" {
			c.language = language
		}
	}
}

// NewTranscriptionClient creates a client. Without [WithAPIKey] the key is
// read from DEEPGRAM_API_KEY.
func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		endpoint: DefaultEndpoint,
		model:    DefaultModel,
		language: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, errors.New("deepgram api key not found")
	}
	return client, nil
}

// Close drops the connection without waiting for pending results.
func (s *TranscriptionClient) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}
	s.stopping.Store(true)
	return s.conn.Close()
}
