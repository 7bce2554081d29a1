// Package miniaudio provides microphone capture and speaker playback through
// miniaudio.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-assistant/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-assistant/core/audio/miniaudio")

const DefaultPlaybackSampleRate = 48000

type Client struct {
	// audioContext is kept to uninitialize it on Close
	audioContext *malgo.AllocatedContext
	playbackRate int
	captureRate  int

	playbackClient
	captureClient
}

type ClientOption func(*Client)

// WithPlaybackSampleRate sets the rate of audio passed to SendAudio.
func WithPlaybackSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		if sampleRate > 0 {
			c.playbackRate = sampleRate
		}
	}
}

// WithCaptureSampleRate sets the rate of captured audio.
func WithCaptureSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		if sampleRate > 0 {
			c.captureRate = sampleRate
		}
	}
}

// NewClient initializes both devices and starts playback.
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		playbackRate: DefaultPlaybackSampleRate,
		captureRate:  audio.DefaultSampleRate,
	}
	for _, opt := range opts {
		opt(client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	if err := client.playbackClient.Init(audioCtx, uint32(client.playbackRate)); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.captureClient.Init(audioCtx, uint32(client.captureRate)); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) StartPlayback(_ context.Context) error {
	return c.playbackClient.Start()
}

func (c *Client) StopPlayback() error {
	return c.playbackClient.Stop()
}

func (c *Client) Close() {
	c.captureClient.Uninit()
	c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

// EncodingInfo describes the audio expected by SendAudio.
func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: c.playbackRate, Format: audio.FormatLinear16}
}

// CaptureEncodingInfo describes the audio passed to the capture callback.
func (c *Client) CaptureEncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: c.captureRate, Format: audio.FormatLinear16}
}
