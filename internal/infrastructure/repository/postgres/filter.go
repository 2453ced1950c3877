package postgres

import (
	"fmt"
	"strings"

	"github.com/kirillkom/research-search/internal/core/domain"
)

// itemDocument reads ri.data as a JSON object, unwrapping rows stored as a
// JSON-encoded string.
const itemDocument = `(CASE jsonb_typeof(ri.data::jsonb) WHEN 'string' THEN (ri.data::jsonb #>> '{}')::jsonb ELSE ri.data::jsonb END)`

// compiledFilter is a conjunction of predicates over research_item (ri)
// and research_item_type (rit).
type compiledFilter struct {
	clauses []string
	args    []any
}

// compileFilters emits one placeholder per filter starting at firstPlaceholder.
// Filters spanning several columns reuse their placeholder.
func compileFilters(spec domain.FilterSpec, firstPlaceholder int) compiledFilter {
	var out compiledFilter
	next := firstPlaceholder

	add := func(template string, arg any) {
		p := fmt.Sprintf("$%d", next)
		next++
		out.clauses = append(out.clauses, strings.ReplaceAll(template, "$?", p))
		out.args = append(out.args, arg)
	}

	if spec.Year != "" {
		add(itemDocument+`->>'year' = $?`, spec.Year)
	}
	if spec.Author != "" {
		add(`EXISTS (SELECT 1 FROM research_item_author AS ria WHERE ria.research_item_id = ri.id AND ria.name ILIKE $?)`, containsPattern(spec.Author))
	}
	if spec.SourceTitle != "" {
		add(itemDocument+`->'source'->>'title' ILIKE $?`, containsPattern(spec.SourceTitle))
	}
	if spec.SourceType != "" {
		add(`(`+itemDocument+`->'source'->>'type' ILIKE $? OR `+itemDocument+`->>'source_type' ILIKE $? OR `+itemDocument+`->'source'->>'source_type' ILIKE $?)`, containsPattern(spec.SourceType))
	}
	if spec.Type != "" {
		add(`(rit.key ILIKE $? OR rit.label ILIKE $?)`, containsPattern(spec.Type))
	}
	if spec.Category != "" {
		add(`(rit.type ILIKE $? OR rit.type_label ILIKE $?)`, containsPattern(spec.Category))
	}
	return out
}

// andClause renders the predicates for appending to an existing WHERE.
func (f compiledFilter) andClause() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return "\n  AND " + strings.Join(f.clauses, "\n  AND ")
}

func containsPattern(value string) string {
	return "%" + escapeLike(value) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
