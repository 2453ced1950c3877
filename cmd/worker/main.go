package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/research-search/internal/config"
	"github.com/kirillkom/research-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/research-search/internal/observability/logging"
	"github.com/kirillkom/research-search/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ClientName: "research-search-" + serviceName})
	if err != nil {
		slog.Error("nats_connect_failed", "error", err.Error())
		os.Exit(1)
	}
	defer bus.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err.Error())
		}
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	if err := bus.SubscribeFeedbackEvents(ctx, newEventHandler(workerMetrics, time.Now)); err != nil {
		slog.Error("worker_subscribe_failed", "error", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
