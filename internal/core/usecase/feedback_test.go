package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kirillkom/research-search/internal/core/domain"
)

func seedRecord(repo *feedbackRepoFake) *domain.FeedbackRecord {
	record := &domain.FeedbackRecord{
		ID:           "fb-1",
		UserID:       "u1",
		Query:        "transformers",
		ItemFeedback: []domain.ItemFeedback{},
	}
	repo.records[record.ID] = record
	return record
}

func mustUpdate(t *testing.T, body string) domain.FeedbackUpdate {
	t.Helper()
	var raw struct {
		FeedbackID     string                     `json:"feedback_id"`
		GlobalFeedback domain.OptionalLabel       `json:"global_feedback"`
		GlobalReason   domain.OptionalString      `json:"global_reason"`
		Item           *domain.ItemFeedbackUpdate `json:"item"`
		Query          string                     `json:"query"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	return domain.FeedbackUpdate{
		FeedbackID:     raw.FeedbackID,
		GlobalFeedback: raw.GlobalFeedback,
		GlobalReason:   raw.GlobalReason,
		Item:           raw.Item,
		Query:          raw.Query,
	}
}

func TestFeedbackItemLabelIsIdempotent(t *testing.T) {
	repo := newFeedbackRepoFake()
	seedRecord(repo)
	uc := NewFeedbackUseCase(repo, nil)
	update := mustUpdate(t, `{"feedback_id":"fb-1","item":{"id":"42","label":1}}`)

	first, err := uc.Apply(context.Background(), update)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	second, err := uc.Apply(context.Background(), update)
	if err != nil {
		t.Fatalf("Apply() second error = %v", err)
	}

	if len(second.Row.ItemFeedback) != 1 {
		t.Fatalf("expected exactly one entry, got %+v", second.Row.ItemFeedback)
	}
	if second.Row.ItemFeedback[0] != first.Row.ItemFeedback[0] {
		t.Fatalf("expected identical state, got %+v vs %+v", first.Row.ItemFeedback, second.Row.ItemFeedback)
	}
	if !second.OK || second.FeedbackID != "fb-1" {
		t.Fatalf("unexpected result: %+v", second)
	}
}

func TestFeedbackItemLabelNullClearsEntry(t *testing.T) {
	repo := newFeedbackRepoFake()
	record := seedRecord(repo)
	reason := "off topic"
	record.ItemFeedback = []domain.ItemFeedback{
		{ID: 41, Label: domain.LabelRelevant},
		{ID: 42, Label: domain.LabelNotRelevant, Reason: &reason},
	}
	uc := NewFeedbackUseCase(repo, nil)

	result, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","item":{"id":42,"label":null}}`))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Row.ItemFeedback) != 1 || result.Row.ItemFeedback[0].ID != 41 {
		t.Fatalf("expected only item 41 to remain, got %+v", result.Row.ItemFeedback)
	}
}

func TestFeedbackItemReasonOnlyForNotRelevant(t *testing.T) {
	repo := newFeedbackRepoFake()
	seedRecord(repo)
	uc := NewFeedbackUseCase(repo, nil)

	result, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","item":{"id":5,"label":0,"reason":"wrong field"}}`))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	entry := result.Row.ItemFeedback[0]
	if entry.Reason == nil || *entry.Reason != "wrong field" {
		t.Fatalf("expected reason to be stored, got %+v", entry)
	}

	result, err = uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","item":{"id":5,"label":1,"reason":"ignored"}}`))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	entry = result.Row.ItemFeedback[0]
	if entry.Label != domain.LabelRelevant || entry.Reason != nil {
		t.Fatalf("expected relevant entry without reason, got %+v", entry)
	}
}

func TestFeedbackGlobalRelevantClearsReason(t *testing.T) {
	repo := newFeedbackRepoFake()
	seedRecord(repo)
	uc := NewFeedbackUseCase(repo, nil)

	result, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","global_feedback":0,"global_reason":"too broad"}`))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Row.GlobalFeedback == nil || *result.Row.GlobalFeedback != domain.LabelNotRelevant {
		t.Fatalf("expected not-relevant, got %+v", result.Row.GlobalFeedback)
	}
	if result.Row.GlobalReason == nil || *result.Row.GlobalReason != "too broad" {
		t.Fatalf("expected reason, got %+v", result.Row.GlobalReason)
	}

	result, err = uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","global_feedback":1}`))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Row.GlobalReason != nil {
		t.Fatalf("expected reason cleared, got %q", *result.Row.GlobalReason)
	}
	if !repo.lastPatch.SetGlobalReason {
		t.Fatalf("expected the clear to be part of the same mutation")
	}
}

func TestFeedbackReasonOnlyUpdate(t *testing.T) {
	repo := newFeedbackRepoFake()
	record := seedRecord(repo)
	uc := NewFeedbackUseCase(repo, nil)

	_, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","global_reason":"stale"}`))
	vErr, ok := domain.AsValidationError(err)
	if !errors.Is(err, domain.ErrInvalidInput) || !ok || vErr.Field != "global_reason" {
		t.Fatalf("expected validation error on global_reason while label is unset, got %v", err)
	}
	if record.GlobalReason != nil || repo.updateCalls != 0 {
		t.Fatalf("expected no write, got reason=%v updates=%d", record.GlobalReason, repo.updateCalls)
	}

	relevant := domain.LabelRelevant
	record.GlobalFeedback = &relevant
	_, err = uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","global_reason":"stale"}`))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input while label is relevant, got %v", err)
	}

	if _, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","global_reason":null}`)); err != nil {
		t.Fatalf("expected a null reason to be accepted, got %v", err)
	}

	notRelevant := domain.LabelNotRelevant
	record.GlobalFeedback = &notRelevant
	if _, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","global_reason":"stale"}`)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if record.GlobalReason == nil || *record.GlobalReason != "stale" {
		t.Fatalf("expected reason stored for not-relevant label, got %+v", record.GlobalReason)
	}
	if repo.lastPatch.SetGlobalFeedback || repo.lastPatch.SetItemFeedback {
		t.Fatalf("expected only the reason column to be written, got %+v", repo.lastPatch)
	}
}

func TestFeedbackFallbackCreate(t *testing.T) {
	repo := newFeedbackRepoFake()
	publisher := &publisherFake{}
	uc := NewFeedbackUseCase(repo, publisher)

	update := mustUpdate(t, `{"feedback_id":"missing","query":"protein folding","item":{"id":3,"label":1}}`)
	update.UserID = "u9"
	result, err := uc.Apply(context.Background(), update)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.FeedbackID == "missing" || result.FeedbackID == "" {
		t.Fatalf("expected a fresh feedback id, got %q", result.FeedbackID)
	}
	record := repo.records[result.FeedbackID]
	if record == nil || record.Query != "protein folding" || record.UserID != "u9" {
		t.Fatalf("unexpected recreated record: %+v", record)
	}
	if len(record.ItemFeedback) != 1 || record.ItemFeedback[0].ID != 3 {
		t.Fatalf("expected mutation applied to recreated record, got %+v", record.ItemFeedback)
	}
	if len(publisher.events) != 2 || publisher.events[0].Kind != domain.FeedbackEventCreated || publisher.events[1].Kind != domain.FeedbackEventUpdated {
		t.Fatalf("unexpected events: %+v", publisher.events)
	}
}

func TestFeedbackReasonOnlyRejectedBeforeFallbackCreate(t *testing.T) {
	repo := newFeedbackRepoFake()
	uc := NewFeedbackUseCase(repo, nil)

	_, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"missing","query":"q","global_reason":"stale"}`))
	vErr, ok := domain.AsValidationError(err)
	if !ok || vErr.Field != "global_reason" {
		t.Fatalf("expected validation error on global_reason, got %v", err)
	}
	if repo.createCalls != 0 {
		t.Fatalf("expected no record to be created, got %d", repo.createCalls)
	}
}

func TestFeedbackFallbackCreateRequiresQuery(t *testing.T) {
	repo := newFeedbackRepoFake()
	uc := NewFeedbackUseCase(repo, nil)

	_, err := uc.Apply(context.Background(), mustUpdate(t, `{"global_feedback":1}`))
	if !errors.Is(err, domain.ErrFallbackCreate) {
		t.Fatalf("expected fallback create error, got %v", err)
	}
	if repo.createCalls != 0 {
		t.Fatalf("expected no record to be created")
	}
}

func TestFeedbackValidation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{name: "global label out of range", body: `{"feedback_id":"fb-1","global_feedback":2}`, field: "global_feedback"},
		{name: "item without id", body: `{"feedback_id":"fb-1","item":{"label":1}}`, field: "item.id"},
		{name: "item without label", body: `{"feedback_id":"fb-1","item":{"id":4}}`, field: "item.label"},
		{name: "item label out of range", body: `{"feedback_id":"fb-1","item":{"id":4,"label":-1}}`, field: "item.label"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFeedbackRepoFake()
			seedRecord(repo)
			uc := NewFeedbackUseCase(repo, nil)

			_, err := uc.Apply(context.Background(), mustUpdate(t, tc.body))
			vErr, ok := domain.AsValidationError(err)
			if !ok || vErr.Field != tc.field {
				t.Fatalf("expected validation error on %q, got %v", tc.field, err)
			}
			if repo.getCalls != 0 || repo.updateCalls != 0 {
				t.Fatalf("expected no storage calls, got get=%d update=%d", repo.getCalls, repo.updateCalls)
			}
		})
	}
}

func TestFeedbackStorageFailure(t *testing.T) {
	repo := newFeedbackRepoFake()
	seedRecord(repo)
	repo.updateErr = errors.New("connection reset")
	uc := NewFeedbackUseCase(repo, nil)

	_, err := uc.Apply(context.Background(), mustUpdate(t, `{"feedback_id":"fb-1","global_feedback":1}`))
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSearchThenFeedbackRoundTrip(t *testing.T) {
	searchUC, _, _, _, repo, _ := newSearchFixture()
	feedbackUC := NewFeedbackUseCase(repo, nil)

	resp, err := searchUC.Search(context.Background(), domain.SearchRequest{Query: "climate models", UserID: "u1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	target := resp.Results[1].ID

	update := mustUpdate(t, `{"global_feedback":0,"global_reason":"missing recent work"}`)
	update.FeedbackID = resp.FeedbackID
	label := domain.OptionalLabel{Set: true, Value: domain.LabelNotRelevant}
	update.Item = &domain.ItemFeedbackUpdate{ID: &target, Label: label, Reason: domain.OptionalString{Set: true, Value: "duplicate"}}
	if _, err := feedbackUC.Apply(context.Background(), update); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	record, err := feedbackUC.Get(context.Background(), resp.FeedbackID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if record.Query != "climate models" || record.UserID != "u1" {
		t.Fatalf("unexpected record header: %+v", record)
	}
	if record.GlobalFeedback == nil || *record.GlobalFeedback != domain.LabelNotRelevant {
		t.Fatalf("expected global not-relevant, got %+v", record.GlobalFeedback)
	}
	if record.GlobalReason == nil || *record.GlobalReason != "missing recent work" {
		t.Fatalf("unexpected global reason: %+v", record.GlobalReason)
	}
	entry, ok := record.FindItemFeedback(target)
	if !ok || entry.Reason == nil || *entry.Reason != "duplicate" {
		t.Fatalf("unexpected item feedback: %+v", record.ItemFeedback)
	}
	if len(record.Results) != len(resp.Results) {
		t.Fatalf("expected results snapshot of %d, got %d", len(resp.Results), len(record.Results))
	}
}

func TestFeedbackGetUnknown(t *testing.T) {
	uc := NewFeedbackUseCase(newFeedbackRepoFake(), nil)

	_, err := uc.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
