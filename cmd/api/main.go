package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-scheduling-assistant/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/api/router"
	appconfig "github.com/wolfman30/clinic-scheduling-assistant/internal/config"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/confirmation"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/dialogue"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/lus"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/outbound"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

func main() {
	// Local .env is optional
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic scheduling assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"store_backend", cfg.StoreBackend,
	)

	ctx := context.Background()

	llmClient, err := mainconfig.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	svc := lus.NewLLMService(llmClient,
		lus.WithModel(modelFor(cfg)),
		lus.WithTemperature(float32(cfg.LLMTemperature)),
		lus.WithTimeout(cfg.LUSTimeout),
		lus.WithLogger(logger),
	)

	store, closeStore, err := mainconfig.BuildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open checkpoint store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	directory := mainconfig.BuildDirectory(cfg, logger)
	metricsHandler, dialogueMetrics := setupMetrics()

	engine, err := buildEngine(cfg, svc, directory, store, dialogueMetrics, logger)
	if err != nil {
		logger.Error("failed to build dialogue engine", "error", err)
		os.Exit(1)
	}

	r := router.New(&router.Config{
		Logger:          logger,
		DialogueHandler: dialogue.NewHandler(engine, logger),
		MetricsHandler:  metricsHandler,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.DialogueMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewDialogueMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), m
}

func buildEngine(cfg *appconfig.Config, svc lus.Service, directory scheduling.Directory, store dialogue.Store, m *metrics.DialogueMetrics, logger *logging.Logger) (*dialogue.Engine, error) {
	opts := []dialogue.Option{
		dialogue.WithLogger(logger),
		dialogue.WithMetrics(m),
		dialogue.WithLocation(cfg.Location()),
		dialogue.WithHistoryWindows(cfg.InitialHistoryWindow, cfg.FollowUpHistoryWindow),
		dialogue.WithMaxTransitions(cfg.MaxTransitions),
		dialogue.WithMonthLookahead(cfg.MaxMonthLookahead),
	}
	if cfg.LexiconPath != "" {
		lex, err := confirmation.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		opts = append(opts, dialogue.WithLexicon(lex))
	}
	if cfg.OutboundWebhookURL != "" {
		notifier, err := outbound.NewWebhookNotifier(outbound.WebhookConfig{URL: cfg.OutboundWebhookURL})
		if err != nil {
			return nil, fmt.Errorf("outbound webhook: %w", err)
		}
		opts = append(opts, dialogue.WithNotifier(notifier))
	}
	return dialogue.New(svc, directory, store, opts...)
}

func modelFor(cfg *appconfig.Config) string {
	switch cfg.LLMProvider {
	case "openai":
		return cfg.OpenAIModel
	case "bedrock":
		return cfg.BedrockModelID
	default:
		return cfg.GeminiModel
	}
}
