package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

var errNoRows = errors.New("no rows")

type embedderFake struct {
	calls int
	query string
	err   error
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type retrieverFake struct {
	calls        int
	query        ports.RetrievalQuery
	results      domain.BranchResults
	err          error
	similar      []domain.BranchHit
	similarID    domain.ItemID
	similarLimit int
}

func (f *retrieverFake) Retrieve(_ context.Context, q ports.RetrievalQuery) (domain.BranchResults, error) {
	f.calls++
	f.query = q
	if f.err != nil {
		return domain.BranchResults{}, f.err
	}
	out := domain.BranchResults{}
	if q.Mode.UsesDense() {
		out.Dense = f.results.Dense
	}
	if q.Mode.UsesLexical() {
		out.Lexical = f.results.Lexical
	}
	return out, nil
}

func (f *retrieverFake) SimilarTo(_ context.Context, id domain.ItemID, limit int) ([]domain.BranchHit, error) {
	f.calls++
	f.similarID = id
	f.similarLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.similar, nil
}

type metadataFake struct {
	mu       sync.Mutex
	calls    int
	ids      []domain.ItemID
	authors  map[domain.ItemID][]domain.Author
	types    map[domain.ItemID]domain.TypeInfo
	verified map[domain.ItemID][]domain.VerifiedEntity
	err      error
}

func (f *metadataFake) record(ids []domain.ItemID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ids = ids
}

func (f *metadataFake) AuthorsByItems(_ context.Context, ids []domain.ItemID) (map[domain.ItemID][]domain.Author, error) {
	f.record(ids)
	if f.err != nil {
		return nil, f.err
	}
	return f.authors, nil
}

func (f *metadataFake) TypesByItems(_ context.Context, ids []domain.ItemID) (map[domain.ItemID]domain.TypeInfo, error) {
	f.record(ids)
	return f.types, nil
}

func (f *metadataFake) VerifiedByItems(_ context.Context, ids []domain.ItemID) (map[domain.ItemID][]domain.VerifiedEntity, error) {
	f.record(ids)
	return f.verified, nil
}

type feedbackRepoFake struct {
	records     map[string]*domain.FeedbackRecord
	createCalls int
	updateCalls int
	getCalls    int
	lastPatch   domain.FeedbackPatch
	createErr   error
	updateErr   error
	getErr      error
}

func newFeedbackRepoFake() *feedbackRepoFake {
	return &feedbackRepoFake{records: map[string]*domain.FeedbackRecord{}}
}

func (f *feedbackRepoFake) Create(_ context.Context, record *domain.FeedbackRecord) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	stored := *record
	f.records[record.ID] = &stored
	return nil
}

func (f *feedbackRepoFake) GetByID(_ context.Context, id string) (*domain.FeedbackRecord, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	record, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get feedback", errNoRows)
	}
	out := *record
	out.ItemFeedback = append([]domain.ItemFeedback(nil), record.ItemFeedback...)
	return &out, nil
}

func (f *feedbackRepoFake) Update(_ context.Context, id string, patch domain.FeedbackPatch) (*domain.FeedbackRow, error) {
	f.updateCalls++
	f.lastPatch = patch
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	record, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "update feedback", errNoRows)
	}
	if patch.SetGlobalFeedback {
		record.GlobalFeedback = patch.GlobalFeedback
	}
	if patch.SetGlobalReason {
		record.GlobalReason = patch.GlobalReason
	}
	if patch.SetItemFeedback {
		record.ItemFeedback = append([]domain.ItemFeedback(nil), patch.ItemFeedback...)
	}
	return rowFromRecord(record), nil
}

func (f *feedbackRepoFake) List(_ context.Context, limit, offset int) ([]domain.FeedbackRecord, error) {
	out := make([]domain.FeedbackRecord, 0, len(f.records))
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, nil
}

type publisherFake struct {
	events []domain.FeedbackEvent
	err    error
}

func (f *publisherFake) PublishFeedbackEvent(_ context.Context, event domain.FeedbackEvent) error {
	f.events = append(f.events, event)
	return f.err
}
