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

	"github.com/imoblink/imoblink/internal/agent"
	"github.com/imoblink/imoblink/internal/catalog"
	"github.com/imoblink/imoblink/internal/config"
	"github.com/imoblink/imoblink/internal/gateway"
	"github.com/imoblink/imoblink/internal/llm"
	"github.com/imoblink/imoblink/internal/store/pg"
	"github.com/imoblink/imoblink/internal/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := pg.OpenDB(cfg.Database.PostgresDSN)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	stores := pg.NewPGStores(db)

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token)
	client := llm.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	classifier := catalog.NewKeywordClassifier()
	paginator := catalog.NewPaginator(stores.Catalog, classifier)

	assembler := agent.NewAssembler(stores.Conversations, stores.Catalog, classifier, cfg.Agents.HistoryLimit)
	orchestrator := agent.NewOrchestrator(client, paginator, agent.ModelDefaults{
		Model:       cfg.Agents.Model,
		Temperature: cfg.Agents.Temperature,
		MaxTokens:   cfg.Agents.MaxTokens,
	}, cfg.OpenAI.TranscriptionModel, logger)
	dispatcher := gateway.NewDispatcher(gw, cfg.Gateway.SendDelay(), cfg.Gateway.MaxImagesPerItem, logger)
	pipeline := agent.NewPipeline(stores, assembler, orchestrator, dispatcher, gw, logger)

	handler := webhook.NewHandler(webhook.HandlerConfig{
		Token:        cfg.Webhook.Token,
		RateLimitRPM: cfg.Webhook.RateLimitRPM,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	}, pipeline, logger)

	mux := http.NewServeMux()
	mux.Handle(cfg.Webhook.Path, handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("webhook server listening", "addr", addr, "path", cfg.Webhook.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
}
