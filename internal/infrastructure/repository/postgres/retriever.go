package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

const (
	maxEfSearch       = 1000
	defaultTextConfig = "english"
)

var textConfigPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Retriever runs the ranked branches over research_item.
type Retriever struct {
	db         *sql.DB
	efSearch   int
	textConfig string
}

func NewRetriever(db *sql.DB, efSearch int, textConfig string) (*Retriever, error) {
	if textConfig == "" {
		textConfig = defaultTextConfig
	}
	if !textConfigPattern.MatchString(textConfig) {
		return nil, fmt.Errorf("invalid text search config %q", textConfig)
	}
	return &Retriever{db: db, efSearch: efSearch, textConfig: textConfig}, nil
}

// Retrieve executes the branches required by the mode inside one read-only
// transaction. Either every branch succeeds or nothing is returned.
func (r *Retriever) Retrieve(ctx context.Context, q ports.RetrievalQuery) (domain.BranchResults, error) {
	var out domain.BranchResults
	err := withReadOnlyTx(ctx, r.db, func(tx *sql.Tx) error {
		if q.Mode.UsesDense() {
			if len(q.Vector) == 0 {
				return errors.New("dense branch requires a query vector")
			}
			hits, err := r.denseBranch(ctx, tx, q)
			if err != nil {
				return err
			}
			out.Dense = hits
		}
		if q.Mode.UsesLexical() {
			hits, err := r.lexicalBranch(ctx, tx, q)
			if err != nil {
				return err
			}
			out.Lexical = hits
		}
		return nil
	})
	if err != nil {
		return domain.BranchResults{}, domain.WrapError(domain.ErrStorage, "retrieve candidates", err)
	}
	return out, nil
}

func (r *Retriever) denseBranch(ctx context.Context, tx *sql.Tx, q ports.RetrievalQuery) ([]domain.BranchHit, error) {
	if err := r.setEfSearch(ctx, tx, q.Depth); err != nil {
		return nil, err
	}

	filter := compileFilters(q.Filters, 3)
	query := `
SELECT ri.id, ri.data, 1 - (ri.embedding_specter2 <=> $1::vector) AS score
FROM research_item AS ri
LEFT JOIN research_item_type AS rit ON rit.id = ri.research_item_type_id
WHERE ri.kind = 'verified'
  AND ri.embedding_specter2 IS NOT NULL` + filter.andClause() + `
ORDER BY ri.embedding_specter2 <=> $1::vector
LIMIT $2`

	args := append([]any{pgvector.NewVector(q.Vector), q.Depth}, filter.args...)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dense query: %w", err)
	}
	return scanHits(rows, "dense")
}

func (r *Retriever) lexicalBranch(ctx context.Context, tx *sql.Tx, q ports.RetrievalQuery) ([]domain.BranchHit, error) {
	filter := compileFilters(q.Filters, 4)
	query := `
SELECT ri.id, ri.data, ts_rank_cd(ri.search_tsv, q.tsq) AS score
FROM research_item AS ri
CROSS JOIN (SELECT websearch_to_tsquery($3::regconfig, $1) AS tsq) AS q
LEFT JOIN research_item_type AS rit ON rit.id = ri.research_item_type_id
WHERE ri.kind = 'verified'
  AND ri.search_tsv @@ q.tsq` + filter.andClause() + `
ORDER BY score DESC, ri.id
LIMIT $2`

	args := append([]any{q.Text, q.Depth, r.textConfig}, filter.args...)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	return scanHits(rows, "lexical")
}

// SimilarTo ranks verified items by distance to the stored vector of id, excluding id.
// An unknown id, or one without a stored vector, yields no hits.
func (r *Retriever) SimilarTo(ctx context.Context, id domain.ItemID, limit int) ([]domain.BranchHit, error) {
	hits := []domain.BranchHit{}
	err := withReadOnlyTx(ctx, r.db, func(tx *sql.Tx) error {
		var target pgvector.Vector
		err := tx.QueryRowContext(ctx, `
SELECT embedding_specter2
FROM research_item
WHERE id = $1 AND embedding_specter2 IS NOT NULL
`, int64(id)).Scan(&target)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("load target vector: %w", err)
		}

		if err := r.setEfSearch(ctx, tx, limit); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
SELECT ri.id, ri.data, 1 - (ri.embedding_specter2 <=> $1::vector) AS score
FROM research_item AS ri
WHERE ri.kind = 'verified'
  AND ri.id <> $2
  AND ri.embedding_specter2 IS NOT NULL
ORDER BY ri.embedding_specter2 <=> $1::vector
LIMIT $3
`, target, int64(id), limit)
		if err != nil {
			return fmt.Errorf("similar query: %w", err)
		}
		hits, err = scanHits(rows, "similar")
		return err
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "similar items", err)
	}
	return hits, nil
}

// setEfSearch widens the HNSW candidate list for the current transaction only.
func (r *Retriever) setEfSearch(ctx context.Context, tx *sql.Tx, depth int) error {
	ef := r.efSearch
	if depth > ef {
		ef = depth
	}
	if ef > maxEfSearch {
		ef = maxEfSearch
	}
	if ef <= 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT set_config('hnsw.ef_search', $1, true)`, strconv.Itoa(ef)); err != nil {
		return fmt.Errorf("set hnsw.ef_search: %w", err)
	}
	return nil
}

func scanHits(rows *sql.Rows, branch string) ([]domain.BranchHit, error) {
	defer rows.Close()

	out := make([]domain.BranchHit, 0)
	for rows.Next() {
		var (
			id  int64
			hit domain.BranchHit
		)
		if err := rows.Scan(&id, &hit.Payload, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", branch, err)
		}
		hit.ID = domain.ItemID(id)
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", branch, err)
	}
	return out, nil
}
