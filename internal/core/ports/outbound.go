package ports

import (
	"context"

	"github.com/kirillkom/research-search/internal/core/domain"
)

// Embedder turns query text into a dense vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RetrievalQuery is a validated request for ranked candidates.
type RetrievalQuery struct {
	Mode    domain.RetrievalMode
	Text    string
	Vector  []float32
	Filters domain.FilterSpec
	Depth   int
}

// Retriever runs the dense and lexical branches against the item store.
type Retriever interface {
	Retrieve(ctx context.Context, q RetrievalQuery) (domain.BranchResults, error)
	SimilarTo(ctx context.Context, id domain.ItemID, limit int) ([]domain.BranchHit, error)
}

// MetadataStore batch-loads relational metadata keyed by item id.
type MetadataStore interface {
	AuthorsByItems(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID][]domain.Author, error)
	TypesByItems(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID]domain.TypeInfo, error)
	VerifiedByItems(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID][]domain.VerifiedEntity, error)
}

// FeedbackRepository persists feedback records.
type FeedbackRepository interface {
	Create(ctx context.Context, record *domain.FeedbackRecord) error
	GetByID(ctx context.Context, id string) (*domain.FeedbackRecord, error)
	Update(ctx context.Context, id string, patch domain.FeedbackPatch) (*domain.FeedbackRow, error)
	List(ctx context.Context, limit, offset int) ([]domain.FeedbackRecord, error)
}

// FeedbackEventPublisher announces feedback writes.
type FeedbackEventPublisher interface {
	PublishFeedbackEvent(ctx context.Context, event domain.FeedbackEvent) error
}

// FeedbackEventSubscriber consumes feedback writes.
type FeedbackEventSubscriber interface {
	SubscribeFeedbackEvents(ctx context.Context, handler func(context.Context, domain.FeedbackEvent) error) error
}
