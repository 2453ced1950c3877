package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/research-search/internal/adapters/mcp"
	"github.com/kirillkom/research-search/internal/bootstrap"
	"github.com/kirillkom/research-search/internal/config"
	"github.com/kirillkom/research-search/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	// stdout carries the protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.SearchUC, app.SimilarUC, app.FeedbackUC)
	if err := server.ServeStdio(); err != nil {
		slog.Error("mcp_server_failed", "error", err.Error())
	}
}
