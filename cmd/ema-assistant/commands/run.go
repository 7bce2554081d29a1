package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/koscakluka/ema-assistant/internal/config"
	"github.com/koscakluka/ema-assistant/internal/logging"
	"github.com/koscakluka/ema-assistant/internal/metrics"
	"github.com/koscakluka/ema-assistant/internal/server"
	"github.com/koscakluka/ema-assistant/internal/tui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	runHeadless bool
	runNoVoice  bool
	runNoOpen   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the conversation",
	Long: `Start the conversation loop.

By default the terminal UI shows the reply and hosts the manual entry field.
With --headless the conversation is driven by voice and the HTTP surface.`,
	RunE: runConversation,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run without the terminal UI")
	runCmd.Flags().BoolVar(&runNoVoice, "no-voice", false, "disable speech input and output")
	runCmd.Flags().BoolVar(&runNoOpen, "no-open", false, "do not open URLs for requests")
}

func runConversation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := newRunLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var release cleanup
	defer func() {
		if err := release.run(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	resolver, store, err := newResolver(ctx, cfg, &release)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	conversationMetrics := metrics.NewConversationMetrics(reg)

	var opener actions.Opener = actions.BrowserOpener{}
	if runNoOpen {
		opener = actions.OpenerFunc(func(url string) error {
			logger.Info("skipping url", "url", url)
			return nil
		})
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithIntentResolver(resolver),
		orchestration.WithActionDispatcher(actions.NewDispatcher(opener)),
		orchestration.WithRearmDelays(rearmDelays(cfg.Orchestration)),
		orchestration.WithEventObserver(conversationMetrics.Observe),
	}
	if !runNoVoice {
		voice, err := voiceOptions(cfg, &release)
		if err != nil {
			return fmt.Errorf("failed to set up voice: %w", err)
		}
		if voice == nil {
			logger.Info("voice disabled, set DEEPGRAM_API_KEY and an audio backend to enable it")
		}
		opts = append(opts, voice...)
	}

	var feed *tui.Feed
	if runHeadless {
		opts = append(opts, headlessCallbacks(logger)...)
	} else {
		feed = tui.NewFeed()
		opts = append(opts, feed.Options()...)
	}

	conversation := orchestration.NewOrchestrator(opts...)
	if err := conversation.Start(ctx); err != nil {
		return err
	}
	defer conversation.Close()

	if runHeadless || cfg.Server.Enabled {
		handler := server.New(server.Config{
			Conversation:   conversation,
			Sessions:       store,
			SessionID:      cfg.Session.ID,
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Logger:         logger,
		})
		go func() {
			logger.Info("serving http", "addr", cfg.ServerAddr())
			if err := server.ListenAndServe(ctx, cfg.ServerAddr(), handler); err != nil {
				logger.Error("http server stopped", "error", err)
				stop()
			}
		}()
	}

	if runHeadless {
		<-ctx.Done()
		return nil
	}

	go func() {
		<-ctx.Done()
		feed.Close()
	}()
	return tui.Run(conversation, feed, cfg.Assistant.Name)
}

// newRunLogger logs to stderr in headless mode and to a file next to the
// config otherwise, since the terminal UI owns the screen.
func newRunLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if runHeadless {
		return logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format), func() {}, nil
	}

	if err := os.MkdirAll(config.StateDir(), 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(config.StateDir(), "ema-assistant.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logging.New(f, cfg.Logging.Level, cfg.Logging.Format), func() { _ = f.Close() }, nil
}

func headlessCallbacks(logger *slog.Logger) []orchestration.OrchestratorOption {
	return []orchestration.OrchestratorOption{
		orchestration.WithStateChangedCallback(func(from, to orchestration.ConversationState) {
			logger.Debug("state changed", "from", from, "to", to)
		}),
		orchestration.WithDisplayCallback(func(text string) {
			logger.Info("display", "text", text)
		}),
		orchestration.WithResolutionCallback(func(intent intents.Intent, err error) {
			if err != nil {
				logger.Warn("resolution failed", "error", err)
				return
			}
			logger.Info("resolved", "kind", intent.Kind, "user_input", intent.UserInput)
		}),
		orchestration.WithActionCallback(func(action actions.Action) {
			logger.Info("opened url", "kind", action.Kind, "url", action.URL)
		}),
		orchestration.WithRejectionCallback(func(text, reason string) {
			logger.Warn("input rejected", "text", text, "reason", reason)
		}),
	}
}
