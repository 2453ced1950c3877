package usecase

import (
	"context"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

// SimilarUseCase ranks verified items by vector similarity to a stored item.
type SimilarUseCase struct {
	retriever ports.Retriever
	enricher  *Enricher
	maxTopK   int
}

func NewSimilarUseCase(retriever ports.Retriever, enricher *Enricher, maxTopK int) *SimilarUseCase {
	if maxTopK <= 0 {
		maxTopK = defaultMaxTopK
	}
	return &SimilarUseCase{retriever: retriever, enricher: enricher, maxTopK: maxTopK}
}

func (uc *SimilarUseCase) Similar(ctx context.Context, req domain.SimilarRequest) (*domain.SimilarResponse, error) {
	if req.ID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "similar", domain.NewValidationError("id", "is required"))
	}
	topK, err := resolveTopK(req.TopK, uc.maxTopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "similar", err)
	}

	hits, err := uc.retriever.SimilarTo(ctx, req.ID, topK)
	if err != nil {
		return nil, storageError("similar items", err)
	}

	candidates := trimCandidates(passThrough(hits, true), topK)
	results, err := uc.enricher.Enrich(ctx, candidates)
	if err != nil {
		return nil, storageError("enrich results", err)
	}
	return &domain.SimilarResponse{Results: results}, nil
}
