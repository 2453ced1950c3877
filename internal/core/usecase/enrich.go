package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

// Enricher attaches authors, type and verification metadata to ranked candidates.
type Enricher struct {
	store ports.MetadataStore
}

func NewEnricher(store ports.MetadataStore) *Enricher {
	return &Enricher{store: store}
}

// Enrich keeps candidate order. Items without metadata get empty lists and a nil type.
func (e *Enricher) Enrich(ctx context.Context, candidates []domain.Candidate) ([]domain.EnrichedResult, error) {
	results := make([]domain.EnrichedResult, 0, len(candidates))
	if len(candidates) == 0 {
		return results, nil
	}

	ids := make([]domain.ItemID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	meta, err := e.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		projection := c.Payload.Project()
		result := domain.EnrichedResult{
			Candidate: c,
			Title:     projection.Title,
			Abstract:  projection.Abstract,
			Year:      projection.Year,
			DOI:       projection.DOI,
			ScopusID:  projection.ScopusID,
			Source:    projection.Source,
			Authors:   meta.Authors[c.ID],
			Verified:  meta.Verified[c.ID],
		}
		if result.Authors == nil {
			result.Authors = []domain.Author{}
		}
		if result.Verified == nil {
			result.Verified = []domain.VerifiedEntity{}
		}
		if info, ok := meta.Types[c.ID]; ok {
			info := info
			result.Type = &info
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Enricher) load(ctx context.Context, ids []domain.ItemID) (domain.Enrichment, error) {
	var out domain.Enrichment
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		authors, err := e.store.AuthorsByItems(gctx, ids)
		if err != nil {
			return fmt.Errorf("load authors: %w", err)
		}
		out.Authors = authors
		return nil
	})
	g.Go(func() error {
		types, err := e.store.TypesByItems(gctx, ids)
		if err != nil {
			return fmt.Errorf("load types: %w", err)
		}
		out.Types = types
		return nil
	})
	g.Go(func() error {
		verified, err := e.store.VerifiedByItems(gctx, ids)
		if err != nil {
			return fmt.Errorf("load verified entities: %w", err)
		}
		out.Verified = verified
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Enrichment{}, domain.WrapError(domain.ErrStorage, "enrich results", err)
	}
	return out, nil
}
