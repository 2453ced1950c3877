package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/research-search/internal/config"
	"github.com/kirillkom/research-search/internal/core/ports"
	"github.com/kirillkom/research-search/internal/core/usecase"
	"github.com/kirillkom/research-search/internal/infrastructure/embedding/specter"
	"github.com/kirillkom/research-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/research-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/research-search/internal/infrastructure/resilience"
	"github.com/kirillkom/research-search/internal/observability/metrics"
)

const ServiceName = "api"

type App struct {
	Config config.Config

	DB           *sql.DB
	Embedding    *specter.Client
	FeedbackRepo *postgres.FeedbackRepository
	Events       *nats.EventBus
	Metrics      *metrics.HTTPServerMetrics

	SearchUC   *usecase.SearchUseCase
	SimilarUC  *usecase.SimilarUseCase
	FeedbackUC *usecase.FeedbackUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN, cfg.PostgresMaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	feedbackRepo := postgres.NewFeedbackRepository(db)
	if err := feedbackRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	retriever, err := postgres.NewRetriever(db, cfg.HNSWEfSearch, cfg.SearchTextConfig)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init retriever: %w", err)
	}
	metadata := postgres.NewMetadataRepository(db)

	httpMetrics := metrics.NewHTTPServerMetrics(ServiceName)
	executor := resilience.NewExecutor(resilienceConfig(cfg)).
		OnStateChange(func(operation string, _, to gobreaker.State) {
			httpMetrics.SetBreakerState(ServiceName, operation, int(to))
		})

	embeddingClient := specter.New(cfg.EmbeddingURL, cfg.EmbeddingTimeout, executor)
	cached, err := specter.NewCachedEmbedder(embeddingClient, cfg.EmbeddingCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	embedder := metrics.NewInstrumentedEmbedder(cached, httpMetrics, ServiceName)

	var (
		bus       *nats.EventBus
		publisher ports.FeedbackEventPublisher
	)
	if cfg.FeedbackEventsEnabled {
		bus, err = nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ClientName:         "research-search-" + ServiceName,
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init feedback events: %w", err)
		}
		publisher = bus
	}

	enricher := usecase.NewEnricher(metadata)
	searchUC := usecase.NewSearchUseCase(embedder, retriever, enricher, feedbackRepo, publisher, cfg.SearchMaxTopK)
	similarUC := usecase.NewSimilarUseCase(retriever, enricher, cfg.SearchMaxTopK)
	feedbackUC := usecase.NewFeedbackUseCase(feedbackRepo, publisher)

	return &App{
		Config:       cfg,
		DB:           db,
		Embedding:    embeddingClient,
		FeedbackRepo: feedbackRepo,
		Events:       bus,
		Metrics:      httpMetrics,

		SearchUC:   searchUC,
		SimilarUC:  similarUC,
		FeedbackUC: feedbackUC,

		closeFn: func() {
			if bus != nil {
				bus.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = cfg.RetryInitialBackoff
	out.RetryMaxBackoff = cfg.RetryMaxBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.BreakerFailureRatio
	out.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	if cfg.BreakerHalfOpenMaxCalls > 0 {
		out.BreakerHalfOpenMaxCalls = uint32(cfg.BreakerHalfOpenMaxCalls)
	}
	return out
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
