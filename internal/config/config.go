// Package config handles configuration loading for the assistant binary.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"

	StoreMemory = "memory"
	StoreRedis  = "redis"

	AudioMiniaudio = "miniaudio"
	AudioPortaudio = "portaudio"
	AudioNone      = "none"
)

// Config represents the assistant configuration.
type Config struct {
	Assistant     AssistantConfig           `toml:"assistant"`
	Session       SessionConfig             `toml:"session"`
	Upstream      UpstreamConfig            `toml:"upstream"`
	Provider      map[string]ProviderConfig `toml:"provider"`
	Speech        SpeechConfig              `toml:"speech"`
	Audio         AudioConfig               `toml:"audio"`
	Server        ServerConfig              `toml:"server"`
	Logging       LoggingConfig             `toml:"logging"`
	Orchestration OrchestrationConfig       `toml:"orchestration"`
}

// AssistantConfig holds the names used in the instruction template.
type AssistantConfig struct {
	Name      string `toml:"name"`
	OwnerName string `toml:"owner_name"`
}

// SessionConfig selects where the session history is kept.
type SessionConfig struct {
	ID            string `toml:"id"`
	Store         string `toml:"store"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// UpstreamConfig selects the language model provider.
type UpstreamConfig struct {
	Provider string        `toml:"provider"`
	Timeout  time.Duration `toml:"timeout"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// SpeechConfig holds Deepgram settings for both directions.
type SpeechConfig struct {
	APIKey          string        `toml:"api_key"`
	Voice           string        `toml:"voice"`
	NoSpeechTimeout time.Duration `toml:"no_speech_timeout"`
}

// AudioConfig selects the audio device backend.
type AudioConfig struct {
	Backend            string `toml:"backend"`
	PlaybackSampleRate int    `toml:"playback_sample_rate"`
	CaptureSampleRate  int    `toml:"capture_sample_rate"`
}

// ServerConfig holds the local HTTP control surface settings.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// OrchestrationConfig holds the listening re-arm delays. Zero keeps the
// built-in default.
type OrchestrationConfig struct {
	InitialDelay      time.Duration `toml:"initial_delay"`
	EmptyFinalDelay   time.Duration `toml:"empty_final_delay"`
	CaptureEndedDelay time.Duration `toml:"capture_ended_delay"`
	CaptureErrorDelay time.Duration `toml:"capture_error_delay"`
	ManualClearDelay  time.Duration `toml:"manual_clear_delay"`
}

// Load reads configuration from the .env file, the config file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(ConfigPath())
}

// LoadFile reads configuration from path, if it exists, and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if p := os.Getenv("EMA_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(StateDir(), "config.toml")
}

// StateDir returns the assistant state directory.
func StateDir() string {
	if p := os.Getenv("EMA_STATE_DIR"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ema-assistant")
}

func Default() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Name: "Ema",
		},
		Session: SessionConfig{
			ID:        "local",
			Store:     StoreMemory,
			RedisAddr: "127.0.0.1:6379",
		},
		Upstream: UpstreamConfig{
			Provider: ProviderGemini,
			Timeout:  15 * time.Second,
		},
		Provider: make(map[string]ProviderConfig),
		Speech: SpeechConfig{
			NoSpeechTimeout: 8 * time.Second,
		},
		Audio: AudioConfig{
			Backend:            AudioMiniaudio,
			PlaybackSampleRate: 48000,
			CaptureSampleRate:  16000,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ProviderSettings returns the settings of the selected upstream provider.
func (c *Config) ProviderSettings() ProviderConfig {
	return c.Provider[c.Upstream.Provider]
}

// ServerAddr returns the listen address of the HTTP control surface.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) applyEnv() error {
	for provider, env := range map[string]string{
		ProviderGemini:    "GEMINI_API_KEY",
		ProviderGroq:      "GROQ_API_KEY",
		ProviderAnthropic: "ANTHROPIC_API_KEY",
	} {
		if key := os.Getenv(env); key != "" {
			p := c.Provider[provider]
			p.APIKey = key
			c.Provider[provider] = p
		}
	}

	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		c.Speech.APIKey = key
	}
	if provider := os.Getenv("EMA_PROVIDER"); provider != "" {
		c.Upstream.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("EMA_MODEL"); model != "" {
		p := c.Provider[c.Upstream.Provider]
		p.Model = model
		c.Provider[c.Upstream.Provider] = p
	}
	if name := os.Getenv("EMA_ASSISTANT_NAME"); name != "" {
		c.Assistant.Name = name
	}
	if name := os.Getenv("EMA_OWNER_NAME"); name != "" {
		c.Assistant.OwnerName = name
	}
	if store := os.Getenv("EMA_SESSION_STORE"); store != "" {
		c.Session.Store = strings.ToLower(store)
	}
	if addr := os.Getenv("EMA_REDIS_ADDR"); addr != "" {
		c.Session.RedisAddr = addr
	}
	if backend := os.Getenv("EMA_AUDIO_BACKEND"); backend != "" {
		c.Audio.Backend = strings.ToLower(backend)
	}
	if level := os.Getenv("EMA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if port := os.Getenv("EMA_SERVER_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid EMA_SERVER_PORT %q: %w", port, err)
		}
		c.Server.Port = parsed
	}
	if timeout := os.Getenv("EMA_UPSTREAM_TIMEOUT"); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid EMA_UPSTREAM_TIMEOUT %q: %w", timeout, err)
		}
		c.Upstream.Timeout = parsed
	}
	return nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Upstream.Provider {
	case ProviderGemini, ProviderGroq, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown upstream provider %q", c.Upstream.Provider))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream timeout must be positive, got %s", c.Upstream.Timeout))
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Session.RedisAddr == "" {
			errs = append(errs, errors.New("redis session store requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}
	if strings.TrimSpace(c.Session.ID) == "" {
		errs = append(errs, errors.New("session id must not be empty"))
	}

	switch c.Audio.Backend {
	case AudioMiniaudio, AudioPortaudio, AudioNone:
	default:
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.Audio.Backend))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", c.Server.Port))
	}

	for name, delay := range map[string]time.Duration{
		"initial_delay":       c.Orchestration.InitialDelay,
		"empty_final_delay":   c.Orchestration.EmptyFinalDelay,
		"capture_ended_delay": c.Orchestration.CaptureEndedDelay,
		"capture_error_delay": c.Orchestration.CaptureErrorDelay,
		"manual_clear_delay":  c.Orchestration.ManualClearDelay,
	} {
		if delay < 0 {
			errs = append(errs, fmt.Errorf("orchestration %s must not be negative", name))
		}
	}

	return errors.Join(errs...)
}
