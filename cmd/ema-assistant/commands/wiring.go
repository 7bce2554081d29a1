package commands

import (
	"context"
	"errors"
	"fmt"

	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/audio/miniaudio"
	"github.com/koscakluka/ema-assistant/core/audio/portaudio"
	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/koscakluka/ema-assistant/core/llms"
	"github.com/koscakluka/ema-assistant/core/llms/anthropic"
	"github.com/koscakluka/ema-assistant/core/llms/gemini"
	"github.com/koscakluka/ema-assistant/core/llms/groq"
	"github.com/koscakluka/ema-assistant/core/sessions"
	sttdeepgram "github.com/koscakluka/ema-assistant/core/speechtotext/deepgram"
	ttsdeepgram "github.com/koscakluka/ema-assistant/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-assistant/internal/config"
	"github.com/redis/go-redis/v9"
)

const maxSessionHistory = 100

// sessionStore is a session store that can create the local session.
type sessionStore interface {
	sessions.Store
	Seed(ctx context.Context, sessionID string, profile sessions.Profile) error
}

// cleanup collects release functions and runs them in reverse order.
type cleanup []func() error

func (c *cleanup) add(release func() error) {
	*c = append(*c, release)
}

func (c cleanup) run() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

func newSessionStore(ctx context.Context, cfg *config.Config, release *cleanup) (sessionStore, error) {
	var store sessionStore
	switch cfg.Session.Store {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		release.add(client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Session.RedisAddr, err)
		}
		store = sessions.NewRedisStore(client, maxSessionHistory)
	default:
		store = sessions.NewMemoryStore(maxSessionHistory)
	}

	profile := sessions.Profile{
		AssistantName: cfg.Assistant.Name,
		OwnerName:     cfg.Assistant.OwnerName,
	}
	if err := store.Seed(ctx, cfg.Session.ID, profile); err != nil {
		return nil, fmt.Errorf("failed to create session %q: %w", cfg.Session.ID, err)
	}
	return store, nil
}

func newGenerator(ctx context.Context, cfg *config.Config, release *cleanup) (llms.Generator, error) {
	settings := cfg.ProviderSettings()
	switch cfg.Upstream.Provider {
	case config.ProviderGroq:
		return groq.NewClient(settings.APIKey,
			groq.WithBaseURL(settings.BaseURL),
			groq.WithModel(settings.Model),
			groq.WithJSONMode(true),
		)
	case config.ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			MaxRetries: -1,
		})
	default:
		model := settings.Model
		if model == "" {
			model = gemini.DefaultModel
		}
		client, err := gemini.NewClient(ctx, settings.APIKey, model)
		if err != nil {
			return nil, err
		}
		release.add(client.Close)
		return client, nil
	}
}

func newResolver(ctx context.Context, cfg *config.Config, release *cleanup) (*intents.Resolver, sessionStore, error) {
	store, err := newSessionStore(ctx, cfg, release)
	if err != nil {
		return nil, nil, err
	}
	generator, err := newGenerator(ctx, cfg, release)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s client: %w", cfg.Upstream.Provider, err)
	}
	resolver := intents.NewResolver(generator, store, cfg.Session.ID, intents.WithTimeout(cfg.Upstream.Timeout))
	return resolver, store, nil
}

func rearmDelays(cfg config.OrchestrationConfig) orchestration.RearmDelays {
	return orchestration.RearmDelays{
		Initial:      cfg.InitialDelay,
		EmptyFinal:   cfg.EmptyFinalDelay,
		CaptureEnded: cfg.CaptureEndedDelay,
		CaptureError: cfg.CaptureErrorDelay,
		ManualClear:  cfg.ManualClearDelay,
	}
}

// voiceOptions wires speech and audio devices. Without a speech key or with
// the audio backend disabled the conversation runs on typed input only.
func voiceOptions(cfg *config.Config, release *cleanup) ([]orchestration.OrchestratorOption, error) {
	if cfg.Audio.Backend == config.AudioNone || cfg.Speech.APIKey == "" {
		return nil, nil
	}

	stt, err := sttdeepgram.NewTranscriptionClient(sttdeepgram.WithAPIKey(cfg.Speech.APIKey))
	if err != nil {
		return nil, err
	}
	release.add(stt.Close)

	opts := []orchestration.OrchestratorOption{
		orchestration.WithSpeechToTextClient(stt),
		orchestration.WithNoSpeechTimeout(cfg.Speech.NoSpeechTimeout),
	}

	switch cfg.Audio.Backend {
	case config.AudioPortaudio:
		input, err := portaudio.NewClient(portaudio.DefaultBufferSize)
		if err != nil {
			return nil, err
		}
		release.add(input.Close)
		opts = append(opts, orchestration.WithAudioInput(input))

	default:
		device, err := miniaudio.NewClient(
			miniaudio.WithPlaybackSampleRate(cfg.Audio.PlaybackSampleRate),
			miniaudio.WithCaptureSampleRate(cfg.Audio.CaptureSampleRate),
		)
		if err != nil {
			return nil, err
		}
		release.add(func() error { device.Close(); return nil })

		tts, err := ttsdeepgram.NewTextToSpeechClient(
			ttsdeepgram.WithAPIKey(cfg.Speech.APIKey),
			ttsdeepgram.WithVoice(ttsdeepgram.Voice(cfg.Speech.Voice)),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			orchestration.WithAudioInput(device),
			orchestration.WithAudioOutput(device),
			orchestration.WithTextToSpeechClient(tts),
		)
	}
	return opts, nil
}
