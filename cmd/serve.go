package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/calchat/calchat/internal/agent"
	"github.com/calchat/calchat/internal/calendar"
	"github.com/calchat/calchat/internal/config"
	"github.com/calchat/calchat/internal/instrumentation"
	"github.com/calchat/calchat/internal/llm"
	"github.com/calchat/calchat/internal/memory"
	"github.com/calchat/calchat/internal/server"
)

const shutdownGrace = 15 * time.Second

func newServeCmd() *cobra.Command {
	var (
		debugMode       bool
		httpAddr        string
		openAIModel     string
		defaultTimezone string
		metricsEnabled  bool
		metricsAddr     string
		logFile         string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conversational calendar HTTP server",
		Long: `Start the calchat HTTP server.

The server exposes POST /ai/message for conversational turns, health
probes on /healthz and /readyz, and (when enabled) Prometheus metrics
on a dedicated port.

The OpenAI API key is read from the OPENAI_API_KEY environment
variable. Each request must carry the caller's Google access token in
the X-Google-Access-Token header.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()

			// Flags win over the environment when set explicitly.
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("model") {
				cfg.OpenAIModel = openAIModel
			}
			if cmd.Flags().Changed("default-timezone") {
				cfg.DefaultTimezone = defaultTimezone
			}
			if cmd.Flags().Changed("metrics-enabled") {
				cfg.MetricsEnabled = metricsEnabled
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("log-file") {
				cfg.LogFile = logFile
			}
			if debugMode {
				cfg.LogLevel = slog.LevelDebug
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address. Can also use CALCHAT_HTTP_ADDR env var.")
	cmd.Flags().StringVar(&openAIModel, "model", "gpt-4o-mini", "OpenAI model for chat completions. Can also use OPENAI_MODEL env var.")
	cmd.Flags().StringVar(&defaultTimezone, "default-timezone", "Asia/Jerusalem", "Timezone assumed when a request carries none. Can also use CALCHAT_DEFAULT_TIMEZONE env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file. Can also use CALCHAT_LOG_FILE env var.")

	return cmd
}

func runServe(cfg config.Config) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	metrics := provider.Metrics()
	auditLogger := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	// Calendar backend with per-call timeouts and operation metrics.
	var backend agent.Backend = calendar.NewClient()
	backend = agent.WithInstrumentation(backend, metrics)
	backend = agent.WithCallTimeout(backend, cfg.BackendTimeout)

	completer, err := llm.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}

	store := memory.NewStore(cfg.MaxMessages)
	dispatcher := agent.NewDispatcher(backend, logger, metrics, auditLogger)
	chatAgent := agent.New(completer, dispatcher, store, agent.Options{
		DefaultTimezone: cfg.DefaultTimezone,
		HistoryLimit:    cfg.HistoryLimit,
		LLMTimeout:      cfg.LLMTimeout,
		Logger:          logger,
		Metrics:         metrics,
	})

	chatServer, err := server.NewChatServer(server.ChatServerConfig{
		Addr:    cfg.HTTPAddr,
		Agent:   chatAgent,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat server: %w", err)
	}

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
				cancel()
			}
		}()
		logger.Info("metrics server listening", slog.String("addr", metricsServer.Addr()))
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- chatServer.Start()
	}()

	logger.Info("calchat ready",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("model", cfg.OpenAIModel),
		slog.String("default_timezone", cfg.DefaultTimezone))

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer drainCancel()

	if err := chatServer.Shutdown(drainCtx); err != nil {
		logger.Error("chat server shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(drainCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}
	return nil
}
