package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/research-search/internal/config"
	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/research-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/research-search/internal/observability/logging"
)

func main() {
	out := flag.String("out", "feedback.xlsx", "output workbook path")
	pageSize := flag.Int("page-size", 500, "records fetched per query")
	limit := flag.Int("limit", 0, "maximum records to export, 0 for all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "feedback-export", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *out, *pageSize, *limit); err != nil {
		slog.Error("feedback_export_failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, out string, pageSize, limit int) error {
	db, err := postgres.OpenDB(cfg.PostgresDSN, cfg.PostgresMaxOpenConns)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	records, err := collect(ctx, postgres.NewFeedbackRepository(db), pageSize, limit)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := xlsx.WriteFeedback(f, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}
	slog.Info("feedback_exported", "path", out, "records", len(records))
	return nil
}

type feedbackLister interface {
	List(ctx context.Context, limit, offset int) ([]domain.FeedbackRecord, error)
}

// collect pages through the store until a short page or the limit is reached.
func collect(ctx context.Context, repo feedbackLister, pageSize, limit int) ([]domain.FeedbackRecord, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var out []domain.FeedbackRecord
	for offset := 0; ; offset += pageSize {
		size := pageSize
		if limit > 0 && limit-len(out) < size {
			size = limit - len(out)
		}
		if size <= 0 {
			return out, nil
		}
		page, err := repo.List(ctx, size, offset)
		if err != nil {
			return nil, fmt.Errorf("list feedback at offset %d: %w", offset, err)
		}
		out = append(out, page...)
		if len(page) < size {
			return out, nil
		}
	}
}
