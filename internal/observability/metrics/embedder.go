package metrics

import (
	"context"
	"time"

	"github.com/kirillkom/research-search/internal/core/ports"
)

// InstrumentedEmbedder records embedding latency around another embedder.
type InstrumentedEmbedder struct {
	next    ports.Embedder
	metrics *HTTPServerMetrics
	service string
}

func NewInstrumentedEmbedder(next ports.Embedder, m *HTTPServerMetrics, service string) ports.Embedder {
	if m == nil {
		return next
	}
	return &InstrumentedEmbedder{next: next, metrics: m, service: service}
}

func (e *InstrumentedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.next.EmbedQuery(ctx, text)
	e.metrics.ObserveEmbedding(e.service, time.Since(start), err)
	return vec, err
}
