package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/research-search/internal/core/domain"
)

const feedbackSchemaLockID int64 = 2026101801

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, feedbackSchemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS search_feedback (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	query TEXT NOT NULL,
	filters JSONB NOT NULL DEFAULT '{}'::jsonb,
	results JSONB NOT NULL DEFAULT '[]'::jsonb,
	global_feedback SMALLINT CHECK (global_feedback IN (0, 1)),
	global_reason TEXT,
	item_feedback JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_feedback_user_created ON search_feedback(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_search_feedback_created_at ON search_feedback(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *FeedbackRepository) Create(ctx context.Context, record *domain.FeedbackRecord) error {
	filtersJSON, err := json.Marshal(record.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	resultsJSON, err := marshalList(record.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	itemsJSON, err := marshalList(record.ItemFeedback)
	if err != nil {
		return fmt.Errorf("marshal item feedback: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO search_feedback (
	id, user_id, query, filters, results, global_feedback, global_reason, item_feedback, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		record.ID, record.UserID, record.Query, filtersJSON, resultsJSON,
		labelArg(record.GlobalFeedback), record.GlobalReason, itemsJSON, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

const feedbackColumns = `id, user_id, query, filters, results, global_feedback, global_reason, item_feedback, created_at, updated_at`

func (r *FeedbackRepository) GetByID(ctx context.Context, id string) (*domain.FeedbackRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+feedbackColumns+`
FROM search_feedback
WHERE id = $1
`, id)

	record, err := scanFeedback(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get feedback", fmt.Errorf("feedback %s", id))
		}
		return nil, fmt.Errorf("get feedback by id: %w", err)
	}
	return record, nil
}

// Update writes only the columns present in the patch.
func (r *FeedbackRepository) Update(ctx context.Context, id string, patch domain.FeedbackPatch) (*domain.FeedbackRow, error) {
	sets := make([]string, 0, 4)
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.SetGlobalFeedback {
		set("global_feedback", labelArg(patch.GlobalFeedback))
	}
	if patch.SetGlobalReason {
		set("global_reason", patch.GlobalReason)
	}
	if patch.SetItemFeedback {
		itemsJSON, err := marshalList(patch.ItemFeedback)
		if err != nil {
			return nil, fmt.Errorf("marshal item feedback: %w", err)
		}
		set("item_feedback", itemsJSON)
	}
	set("updated_at", time.Now().UTC())

	row := r.db.QueryRowContext(ctx, `
UPDATE search_feedback
SET `+strings.Join(sets, ", ")+`
WHERE id = $1
RETURNING id, global_feedback, global_reason, item_feedback
`, args...)

	var (
		out      domain.FeedbackRow
		global   sql.NullInt64
		reason   sql.NullString
		itemsRaw []byte
	)
	if err := row.Scan(&out.ID, &global, &reason, &itemsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "update feedback", fmt.Errorf("feedback %s", id))
		}
		return nil, fmt.Errorf("update feedback: %w", err)
	}
	out.GlobalFeedback = labelFromNull(global)
	out.GlobalReason = stringFromNull(reason)
	items, err := unmarshalItems(itemsRaw)
	if err != nil {
		return nil, err
	}
	out.ItemFeedback = items
	return &out, nil
}

// List returns records newest first.
func (r *FeedbackRepository) List(ctx context.Context, limit, offset int) ([]domain.FeedbackRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+feedbackColumns+`
FROM search_feedback
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FeedbackRecord, 0)
	for rows.Next() {
		record, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (*domain.FeedbackRecord, error) {
	var (
		record                           domain.FeedbackRecord
		filtersRaw, resultsRaw, itemsRaw []byte
		global                           sql.NullInt64
		reason                           sql.NullString
	)
	err := row.Scan(
		&record.ID, &record.UserID, &record.Query, &filtersRaw, &resultsRaw,
		&global, &reason, &itemsRaw, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(filtersRaw) > 0 {
		if err := json.Unmarshal(filtersRaw, &record.Filters); err != nil {
			return nil, fmt.Errorf("unmarshal filters: %w", err)
		}
	}
	record.Results = []domain.ResultSnapshot{}
	if len(resultsRaw) > 0 {
		if err := json.Unmarshal(resultsRaw, &record.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	items, err := unmarshalItems(itemsRaw)
	if err != nil {
		return nil, err
	}
	record.ItemFeedback = items
	record.GlobalFeedback = labelFromNull(global)
	record.GlobalReason = stringFromNull(reason)
	return &record, nil
}

func unmarshalItems(raw []byte) ([]domain.ItemFeedback, error) {
	items := []domain.ItemFeedback{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal item feedback: %w", err)
	}
	if items == nil {
		items = []domain.ItemFeedback{}
	}
	return items, nil
}

// marshalList encodes nil slices as [] rather than null.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func labelArg(label *domain.Label) any {
	if label == nil {
		return nil
	}
	return int64(*label)
}

func labelFromNull(v sql.NullInt64) *domain.Label {
	if !v.Valid {
		return nil
	}
	label := domain.Label(v.Int64)
	return &label
}

func stringFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
