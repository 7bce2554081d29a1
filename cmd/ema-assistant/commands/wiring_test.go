package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/koscakluka/ema-assistant/core/llms/anthropic"
	"github.com/koscakluka/ema-assistant/core/llms/groq"
	"github.com/koscakluka/ema-assistant/core/sessions"
	"github.com/koscakluka/ema-assistant/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupRunsInReverseOrder(t *testing.T) {
	var order []string
	var release cleanup
	release.add(func() error { order = append(order, "first"); return nil })
	release.add(func() error { order = append(order, "second"); return errors.New("boom") })

	err := release.run()

	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestRearmDelaysFromConfig(t *testing.T) {
	delays := rearmDelays(config.OrchestrationConfig{
		InitialDelay:     time.Second,
		ManualClearDelay: 2 * time.Second,
	})
	assert.Equal(t, time.Second, delays.Initial)
	assert.Equal(t, 2*time.Second, delays.ManualClear)
	assert.Zero(t, delays.EmptyFinal)
}

func TestNewSessionStoreMemory(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Assistant.OwnerName = "Luka"

	var release cleanup
	store, err := newSessionStore(ctx, cfg, &release)
	require.NoError(t, err)
	require.NoError(t, release.run())

	session, err := store.Context(ctx, cfg.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ema", session.AssistantName)
	assert.Equal(t, "Luka", session.OwnerName)
}

func TestNewSessionStoreRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Session.Store = config.StoreRedis
	cfg.Session.RedisAddr = mr.Addr()

	var release cleanup
	defer func() { _ = release.run() }()

	store, err := newSessionStore(ctx, cfg, &release)
	require.NoError(t, err)
	_, ok := store.(*sessions.RedisStore)
	require.True(t, ok, "expected a redis store, got %T", store)

	require.NoError(t, store.AppendHistory(ctx, cfg.Session.ID, "open facebook"))
	session, err := store.Context(ctx, cfg.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"open facebook"}, session.History)
}

func TestNewSessionStoreRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Session.Store = config.StoreRedis
	cfg.Session.RedisAddr = addr

	var release cleanup
	defer func() { _ = release.run() }()

	_, err := newSessionStore(context.Background(), cfg, &release)
	require.Error(t, err)
}

func TestNewGeneratorSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		check    func(t *testing.T, generator any)
	}{
		{
			provider: config.ProviderGroq,
			check: func(t *testing.T, generator any) {
				_, ok := generator.(*groq.Client)
				assert.True(t, ok, "expected groq client, got %T", generator)
			},
		},
		{
			provider: config.ProviderAnthropic,
			check: func(t *testing.T, generator any) {
				_, ok := generator.(*anthropic.Client)
				assert.True(t, ok, "expected anthropic client, got %T", generator)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Default()
			cfg.Upstream.Provider = tt.provider
			cfg.Provider[tt.provider] = config.ProviderConfig{APIKey: "test-key"}

			var release cleanup
			generator, err := newGenerator(context.Background(), cfg, &release)
			require.NoError(t, err)
			tt.check(t, generator)
		})
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	cfg := config.Default()
	cfg.Upstream.Provider = config.ProviderGroq

	var release cleanup
	_, err := newGenerator(context.Background(), cfg, &release)
	require.Error(t, err)
}

func TestVoiceOptionsDisabledWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.APIKey = ""

	var release cleanup
	opts, err := voiceOptions(cfg, &release)
	require.NoError(t, err)
	assert.Nil(t, opts)

	cfg.Speech.APIKey = "key"
	cfg.Audio.Backend = config.AudioNone
	opts, err = voiceOptions(cfg, &release)
	require.NoError(t, err)
	assert.Nil(t, opts)
}

func TestVersionCommand(t *testing.T) {
	version = "1.2.3"
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "ema-assistant 1.2.3\n", out.String())
}
