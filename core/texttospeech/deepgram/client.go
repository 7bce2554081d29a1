// Package deepgram implements streaming text-to-speech over Deepgram's speak
// websocket.
package deepgram

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-assistant/core/texttospeech/deepgram"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

const DefaultEndpoint = "wss://api.deepgram.com/v1/speak"

type TextToSpeechClient struct {
	apiKey   string
	endpoint string
	voice    deepgramVoice
}

type ClientOption func(*TextToSpeechClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) {
		if apiKey != "" {
			c.apiKey = apiKey
		}
	}
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *TextToSpeechClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithVoice selects the voice. An empty voice keeps the default.
func WithVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// NewTextToSpeechClient creates a client. Without [WithAPIKey] the key is
// read from DEEPGRAM_API_KEY.
func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		endpoint: DefaultEndpoint,
		voice:    defaultVoice,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, errors.New("deepgram api key not found")
	}
	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}
	return client, nil
}

func (c *TextToSpeechClient) Voice() deepgramVoice {
	return c.voice
}
