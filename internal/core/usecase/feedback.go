package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

type FeedbackUseCase struct {
	repo   ports.FeedbackRepository
	events ports.FeedbackEventPublisher
}

func NewFeedbackUseCase(repo ports.FeedbackRepository, events ports.FeedbackEventPublisher) *FeedbackUseCase {
	return &FeedbackUseCase{repo: repo, events: events}
}

// Apply merges one mutation into a feedback record. An unknown or missing
// feedback id recreates the record from the query snapshot in the request.
func (uc *FeedbackUseCase) Apply(ctx context.Context, update domain.FeedbackUpdate) (*domain.FeedbackResult, error) {
	filters, err := validateFeedbackUpdate(update)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply feedback", err)
	}
	update.Filters = filters

	record, err := uc.find(ctx, update.FeedbackID)
	if err != nil {
		return nil, err
	}
	var stored *domain.Label
	if record != nil {
		stored = record.GlobalFeedback
	}
	if err := validateGlobalReason(stored, update); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply feedback", err)
	}
	if record == nil {
		record, err = uc.create(ctx, update)
		if err != nil {
			return nil, err
		}
	}

	patch := mergeFeedback(record, update)
	var row *domain.FeedbackRow
	if patch.IsEmpty() {
		row = rowFromRecord(record)
	} else {
		row, err = uc.repo.Update(ctx, record.ID, patch)
		if err != nil {
			return nil, storageError("update feedback", err)
		}
	}

	event := domain.FeedbackEvent{
		Kind:           domain.FeedbackEventUpdated,
		FeedbackID:     row.ID,
		UserID:         record.UserID,
		GlobalChanged:  patch.SetGlobalFeedback,
		GlobalFeedback: patch.GlobalFeedback,
	}
	if update.Item != nil && update.Item.ID != nil {
		id := *update.Item.ID
		event.ItemID = &id
		event.ItemLabel = update.Item.Label.Label()
	}
	publishFeedbackEvent(ctx, uc.events, event)

	return &domain.FeedbackResult{OK: true, FeedbackID: row.ID, Row: *row}, nil
}

func (uc *FeedbackUseCase) Get(ctx context.Context, id string) (*domain.FeedbackRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get feedback", domain.NewValidationError("id", "is required"))
	}
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get feedback", err)
	}
	return record, nil
}

// find returns nil without error when id is blank or unknown.
func (uc *FeedbackUseCase) find(ctx context.Context, id string) (*domain.FeedbackRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, storageError("load feedback", err)
	}
	return record, nil
}

func (uc *FeedbackUseCase) create(ctx context.Context, update domain.FeedbackUpdate) (*domain.FeedbackRecord, error) {
	query := strings.TrimSpace(update.Query)
	if query == "" {
		return nil, domain.WrapError(
			domain.ErrFallbackCreate,
			"apply feedback",
			domain.NewValidationError("query", "is required when feedback_id is missing or unknown"),
		)
	}

	results := update.Results
	if results == nil {
		results = []domain.ResultSnapshot{}
	}
	now := time.Now().UTC()
	record := &domain.FeedbackRecord{
		ID:           uuid.NewString(),
		UserID:       userOrAnonymous(update.UserID),
		Query:        query,
		Filters:      update.Filters,
		Results:      results,
		ItemFeedback: []domain.ItemFeedback{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, record); err != nil {
		return nil, storageError("create feedback record", err)
	}
	publishFeedbackEvent(ctx, uc.events, domain.FeedbackEvent{
		Kind:       domain.FeedbackEventCreated,
		FeedbackID: record.ID,
		UserID:     record.UserID,
		OccurredAt: now,
	})
	return record, nil
}

func validateFeedbackUpdate(update domain.FeedbackUpdate) (domain.FilterSpec, error) {
	if update.GlobalFeedback.Set && !update.GlobalFeedback.Null && !update.GlobalFeedback.Value.Valid() {
		return domain.FilterSpec{}, domain.NewValidationError("global_feedback", "must be 0, 1 or null")
	}
	if item := update.Item; item != nil {
		if item.ID == nil || *item.ID <= 0 {
			return domain.FilterSpec{}, domain.NewValidationError("item.id", "is required")
		}
		if !item.Label.Set {
			return domain.FilterSpec{}, domain.NewValidationError("item.label", "is required")
		}
		if !item.Label.Null && !item.Label.Value.Valid() {
			return domain.FilterSpec{}, domain.NewValidationError("item.label", "must be 0, 1 or null")
		}
	}
	return update.Filters.Normalize()
}

// validateGlobalReason rejects a reason sent without a label while the stored
// label is not not-relevant. A reason sent alongside a label follows the label.
func validateGlobalReason(stored *domain.Label, update domain.FeedbackUpdate) error {
	if update.GlobalFeedback.Set || update.GlobalReason.String() == nil {
		return nil
	}
	if stored != nil && *stored == domain.LabelNotRelevant {
		return nil
	}
	return domain.NewValidationError("global_reason", "requires global_feedback 0")
}

// mergeFeedback computes the columns a mutation overwrites.
func mergeFeedback(record *domain.FeedbackRecord, update domain.FeedbackUpdate) domain.FeedbackPatch {
	var patch domain.FeedbackPatch

	effective := record.GlobalFeedback
	if update.GlobalFeedback.Set {
		label := update.GlobalFeedback.Label()
		patch.SetGlobalFeedback = true
		patch.GlobalFeedback = label
		effective = label
		if label == nil || *label == domain.LabelRelevant {
			patch.SetGlobalReason = true
			patch.GlobalReason = nil
		}
	}
	if update.GlobalReason.Set && effective != nil && *effective == domain.LabelNotRelevant {
		patch.SetGlobalReason = true
		patch.GlobalReason = update.GlobalReason.String()
	}

	if item := update.Item; item != nil && item.ID != nil {
		patch.SetItemFeedback = true
		patch.ItemFeedback = upsertItemFeedback(record.ItemFeedback, *item)
	}
	return patch
}

// upsertItemFeedback replaces the entry for the item in place, appends a new
// one, or drops it when the label is null.
func upsertItemFeedback(current []domain.ItemFeedback, item domain.ItemFeedbackUpdate) []domain.ItemFeedback {
	id := *item.ID
	label := item.Label.Label()

	var entry domain.ItemFeedback
	if label != nil {
		entry = domain.ItemFeedback{ID: id, Label: *label}
		if *label == domain.LabelNotRelevant {
			entry.Reason = item.Reason.String()
		}
	}

	out := make([]domain.ItemFeedback, 0, len(current)+1)
	replaced := false
	for _, existing := range current {
		if existing.ID != id {
			out = append(out, existing)
			continue
		}
		if label != nil && !replaced {
			out = append(out, entry)
			replaced = true
		}
	}
	if label != nil && !replaced {
		out = append(out, entry)
	}
	return out
}

func rowFromRecord(record *domain.FeedbackRecord) *domain.FeedbackRow {
	items := record.ItemFeedback
	if items == nil {
		items = []domain.ItemFeedback{}
	}
	return &domain.FeedbackRow{
		ID:             record.ID,
		GlobalFeedback: record.GlobalFeedback,
		GlobalReason:   record.GlobalReason,
		ItemFeedback:   items,
	}
}
