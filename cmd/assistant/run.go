package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lexiqai/voice-assistant/internal/agent"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/listen"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/orchestrator"
	"github.com/lexiqai/voice-assistant/internal/resilience"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

var textOnly bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversation loop",
	Long: `Run the conversation loop until interrupted or an exit phrase is heard.

With --text-only the wake phrase is skipped, utterances are read from stdin
and replies are printed instead of spoken.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.WithTextOnly(textOnly))
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&textOnly, "text-only", false, "read utterances from stdin and print replies")
}

func run(parent context.Context, cfg *config.Config) error {
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("version", version).
		Str("engine", cfg.AgentEngine).
		Str("recognizer", cfg.Recognizer).
		Str("capture_backend", cfg.CaptureBackend).
		Bool("text_only", cfg.TextOnly).
		Msg("Voice assistant starting")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	wake := listen.NewWakeWordConfig(cfg.WakePhrase)
	operations := agent.NewRegistry(orchestrator.BuiltinOperations(wake, nil)...)
	session := agent.NewSession(buildEngine(cfg), operations, cfg.Instructions())
	defer session.Close()

	checks := map[string]observability.HealthCheckFunc{
		"agent": func(ctx context.Context) (bool, error) {
			state := session.State()
			if state == agent.StateReady || state == agent.StateBusy {
				return true, nil
			}
			return false, fmt.Errorf("session %s", state)
		},
	}
	if cfg.AgentHealthAddr != "" {
		checks["engine"] = func(ctx context.Context) (bool, error) {
			return agent.ProbeHealth(ctx, cfg.AgentHealthAddr)
		}
	}

	opts := orchestrator.Options{
		Agent:          session,
		ExitPhrases:    cfg.ExitPhrases,
		InitPolicy:     resilience.ExponentialPolicy(cfg.InitRetryAttempts, ms(cfg.InitRetryBaseMs), ms(cfg.InitRetryMaxMs)),
		ErrorThreshold: cfg.ErrorThreshold,
		Cooldown:       cfg.ErrorCooldown(),
	}

	if cfg.TextOnly {
		opts.Input = listen.NewTextInput(os.Stdin, os.Stdout)
		opts.Speaker = tts.NewSynthesizer(nil, os.Stdout)
	} else {
		source, available := buildSource(cfg)
		checks["capture"] = func(ctx context.Context) (bool, error) {
			if err := available(); err != nil {
				return false, err
			}
			return true, nil
		}

		recognizer, err := buildRecognizer(cfg)
		if err != nil {
			return err
		}

		capturePolicy := resilience.LinearPolicy(cfg.CaptureRetryAttempts, ms(cfg.CaptureRetryBaseMs))
		opts.Wake = listen.NewSpotter(source, recognizer, wake, capturePolicy)
		opts.Input = listen.NewCapturer(source, recognizer, listen.CaptureOptions{
			SilenceTimeout: cfg.SilenceTimeout(),
			MaxDuration:    cfg.MaxUtterance(),
			Policy:         capturePolicy,
			VAD:            vadConfig(cfg),
		})
		opts.Speaker = tts.NewSynthesizer(buildRenderer(cfg), os.Stdout)
	}

	server := startAdminServer(cfg, checks)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Admin server forced to shutdown")
		}
	}()

	if err := orchestrator.New(opts).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Voice assistant stopped")
		return err
	}

	logger.Info().Msg("Voice assistant exited gracefully")
	return nil
}

func startAdminServer(cfg *config.Config, checks map[string]observability.HealthCheckFunc) *http.Server {
	logger := observability.GetLogger()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler(version))
	mux.HandleFunc("/ready", observability.ReadinessHandler(version, checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AdminPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.AdminPort).Bool("metrics_enabled", cfg.MetricsEnabled).Msg("Admin server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// The assistant keeps running without its admin endpoints
			logger.Error().Err(err).Msg("Admin server failed")
		}
	}()

	return server
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
