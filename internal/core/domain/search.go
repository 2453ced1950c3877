package domain

import (
	"regexp"
	"strings"
)

type RetrievalMode string

const (
	ModeHybrid      RetrievalMode = "hybrid"
	ModeDenseOnly   RetrievalMode = "dense-only"
	ModeLexicalOnly RetrievalMode = "lexical-only"
)

const (
	DefaultTopK   = 5
	AnonymousUser = "anonymous"

	minRetrievalDepth   = 200
	depthPerResultRatio = 80
)

// ParseRetrievalMode maps a request value to a mode; blank means hybrid.
func ParseRetrievalMode(raw string) (RetrievalMode, error) {
	switch RetrievalMode(strings.TrimSpace(raw)) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeDenseOnly:
		return ModeDenseOnly, nil
	case ModeLexicalOnly:
		return ModeLexicalOnly, nil
	default:
		return "", NewValidationError("mode", "must be one of hybrid, dense-only, lexical-only")
	}
}

func (m RetrievalMode) UsesDense() bool {
	return m == ModeHybrid || m == ModeDenseOnly
}

func (m RetrievalMode) UsesLexical() bool {
	return m == ModeHybrid || m == ModeLexicalOnly
}

// RetrievalDepth is the per-branch candidate budget for a requested result count.
func RetrievalDepth(topK int) int {
	depth := topK * depthPerResultRatio
	if depth < minRetrievalDepth {
		return minRetrievalDepth
	}
	return depth
}

// FusionConstant is the RRF smoothing term derived from the retrieval depth.
func FusionConstant(depth int) int {
	return (depth + 2) / 4
}

type SearchRequest struct {
	Query   string        `json:"query"`
	TopK    int           `json:"top_k"`
	Mode    RetrievalMode `json:"mode"`
	Filters FilterSpec    `json:"filters"`
	UserID  string        `json:"-"`
}

type SearchResponse struct {
	Results    []EnrichedResult `json:"results"`
	Mode       RetrievalMode    `json:"mode"`
	FeedbackID string           `json:"feedback_id"`
}

type SimilarRequest struct {
	ID   ItemID `json:"id"`
	TopK int    `json:"top_k"`
}

type SimilarResponse struct {
	Results []EnrichedResult `json:"results"`
}

// FilterSpec holds the optional user filters. Blank fields are absent.
type FilterSpec struct {
	Year        string `json:"year,omitempty"`
	Author      string `json:"author,omitempty"`
	SourceTitle string `json:"source_title,omitempty"`
	SourceType  string `json:"source_type,omitempty"`
	Type        string `json:"type,omitempty"`
	Category    string `json:"category,omitempty"`
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Normalize trims every field and validates the ones with a format rule.
func (f FilterSpec) Normalize() (FilterSpec, error) {
	out := FilterSpec{
		Year:        strings.TrimSpace(f.Year),
		Author:      strings.TrimSpace(f.Author),
		SourceTitle: strings.TrimSpace(f.SourceTitle),
		SourceType:  strings.TrimSpace(f.SourceType),
		Type:        strings.TrimSpace(f.Type),
		Category:    strings.TrimSpace(f.Category),
	}
	if out.Year != "" && !yearPattern.MatchString(out.Year) {
		return FilterSpec{}, NewValidationError("filters.year", "must be a four-digit year")
	}
	return out, nil
}

func (f FilterSpec) IsEmpty() bool {
	return f == FilterSpec{}
}
