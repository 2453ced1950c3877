package ports

import (
	"context"

	"github.com/kirillkom/research-search/internal/core/domain"
)

// SearchService is the inbound contract for hybrid search over research items.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}

// SimilarService finds neighbours of a stored item.
type SimilarService interface {
	Similar(ctx context.Context, req domain.SimilarRequest) (*domain.SimilarResponse, error)
}

// FeedbackService records relevance feedback.
type FeedbackService interface {
	Apply(ctx context.Context, update domain.FeedbackUpdate) (*domain.FeedbackResult, error)
	Get(ctx context.Context, id string) (*domain.FeedbackRecord, error)
}
