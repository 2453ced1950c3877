package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/research-search/internal/core/domain"
)

// MetadataRepository batch-reads relational metadata for research items.
type MetadataRepository struct {
	db *sql.DB
}

func NewMetadataRepository(db *sql.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

func (r *MetadataRepository) AuthorsByItems(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID][]domain.Author, error) {
	out := make(map[domain.ItemID][]domain.Author)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT research_item_id, position, name, verified_id
FROM research_item_author
WHERE research_item_id = ANY($1)
ORDER BY research_item_id, position
`, itemIDArg(ids))
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID   int64
			author   domain.Author
			name     sql.NullString
			verified sql.NullInt64
		)
		if err := rows.Scan(&itemID, &author.Position, &name, &verified); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		author.Name = name.String
		if verified.Valid {
			v := verified.Int64
			author.VerifiedID = &v
		}
		out[domain.ItemID(itemID)] = append(out[domain.ItemID(itemID)], author)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authors: %w", err)
	}
	return out, nil
}

func (r *MetadataRepository) TypesByItems(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID]domain.TypeInfo, error) {
	out := make(map[domain.ItemID]domain.TypeInfo)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT ri.id, rit.key, rit.label, rit.type, rit.type_label
FROM research_item AS ri
JOIN research_item_type AS rit ON rit.id = ri.research_item_type_id
WHERE ri.id = ANY($1)
`, itemIDArg(ids))
	if err != nil {
		return nil, fmt.Errorf("query item types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID                              int64
			key, label, category, categoryLabel sql.NullString
		)
		if err := rows.Scan(&itemID, &key, &label, &category, &categoryLabel); err != nil {
			return nil, fmt.Errorf("scan item type: %w", err)
		}
		out[domain.ItemID(itemID)] = domain.TypeInfo{
			Key:           key.String,
			Label:         label.String,
			Category:      category.String,
			CategoryLabel: categoryLabel.String,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item types: %w", err)
	}
	return out, nil
}

func (r *MetadataRepository) VerifiedByItems(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID][]domain.VerifiedEntity, error) {
	out := make(map[domain.ItemID][]domain.VerifiedEntity)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT v.research_item_id, v.entity_id, v.entity_type, v.position,
       e.id, e.data
FROM verified_research_item AS v
LEFT JOIN research_entity AS e ON e.id = v.entity_id
WHERE v.research_item_id = ANY($1)
ORDER BY v.research_item_id, v.position, v.entity_id
`, itemIDArg(ids))
	if err != nil {
		return nil, fmt.Errorf("query verified entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID     int64
			entity     domain.VerifiedEntity
			entityType sql.NullString
			position   sql.NullInt64
			researchID sql.NullInt64
			data       domain.Payload
		)
		if err := rows.Scan(&itemID, &entity.EntityID, &entityType, &position, &researchID, &data); err != nil {
			return nil, fmt.Errorf("scan verified entity: %w", err)
		}
		entity.EntityType = entityType.String
		entity.Position = int(position.Int64)
		if researchID.Valid {
			entity.ResearchEntity = &domain.ResearchEntity{ID: researchID.Int64, Data: data}
		}
		out[domain.ItemID(itemID)] = append(out[domain.ItemID(itemID)], entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verified entities: %w", err)
	}
	return out, nil
}

func itemIDArg(ids []domain.ItemID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}
