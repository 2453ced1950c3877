package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

const defaultMaxTopK = 100

type SearchUseCase struct {
	embedder  ports.Embedder
	retriever ports.Retriever
	enricher  *Enricher
	feedback  ports.FeedbackRepository
	events    ports.FeedbackEventPublisher
	maxTopK   int
}

func NewSearchUseCase(
	embedder ports.Embedder,
	retriever ports.Retriever,
	enricher *Enricher,
	feedback ports.FeedbackRepository,
	events ports.FeedbackEventPublisher,
	maxTopK int,
) *SearchUseCase {
	if maxTopK <= 0 {
		maxTopK = defaultMaxTopK
	}
	return &SearchUseCase{
		embedder:  embedder,
		retriever: retriever,
		enricher:  enricher,
		feedback:  feedback,
		events:    events,
		maxTopK:   maxTopK,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", domain.NewValidationError("query", "is required"))
	}
	topK, err := resolveTopK(req.TopK, uc.maxTopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", err)
	}
	mode, err := domain.ParseRetrievalMode(string(req.Mode))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", err)
	}
	filters, err := req.Filters.Normalize()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", err)
	}

	depth := domain.RetrievalDepth(topK)

	var vector []float32
	if mode.UsesDense() {
		vector, err = uc.embedder.EmbedQuery(ctx, query)
		if err != nil {
			if domain.IsKind(err, domain.ErrEmbeddingService) || domain.IsKind(err, domain.ErrTemporary) {
				return nil, err
			}
			return nil, domain.WrapError(domain.ErrEmbeddingService, "embed query", err)
		}
	}

	branches, err := uc.retriever.Retrieve(ctx, ports.RetrievalQuery{
		Mode:    mode,
		Text:    query,
		Vector:  vector,
		Filters: filters,
		Depth:   depth,
	})
	if err != nil {
		return nil, storageError("retrieve candidates", err)
	}

	candidates := rankCandidates(mode, branches, domain.FusionConstant(depth))
	candidates = trimCandidates(candidates, topK)

	results, err := uc.enricher.Enrich(ctx, candidates)
	if err != nil {
		return nil, storageError("enrich results", err)
	}

	now := time.Now().UTC()
	record := &domain.FeedbackRecord{
		ID:           uuid.NewString(),
		UserID:       userOrAnonymous(req.UserID),
		Query:        query,
		Filters:      filters,
		Results:      domain.SnapshotResults(results),
		ItemFeedback: []domain.ItemFeedback{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.feedback.Create(ctx, record); err != nil {
		return nil, storageError("create feedback record", err)
	}
	publishFeedbackEvent(ctx, uc.events, domain.FeedbackEvent{
		Kind:       domain.FeedbackEventCreated,
		FeedbackID: record.ID,
		UserID:     record.UserID,
		OccurredAt: now,
	})

	return &domain.SearchResponse{
		Results:    results,
		Mode:       mode,
		FeedbackID: record.ID,
	}, nil
}

func resolveTopK(topK, maxTopK int) (int, error) {
	switch {
	case topK == 0:
		return domain.DefaultTopK, nil
	case topK < 0:
		return 0, domain.NewValidationError("top_k", "must be a positive integer")
	case maxTopK > 0 && topK > maxTopK:
		return 0, domain.NewValidationError("top_k", fmt.Sprintf("must not exceed %d", maxTopK))
	default:
		return topK, nil
	}
}

func storageError(operation string, err error) error {
	if domain.IsKind(err, domain.ErrStorage) || domain.IsKind(err, domain.ErrNotFound) {
		return err
	}
	return domain.WrapError(domain.ErrStorage, operation, err)
}
