package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Label is a relevance judgement. Unset is modelled as a nil *Label.
type Label int

const (
	LabelNotRelevant Label = 0
	LabelRelevant    Label = 1
)

func (l Label) Valid() bool {
	return l == LabelNotRelevant || l == LabelRelevant
}

func (l Label) String() string {
	switch l {
	case LabelNotRelevant:
		return "not_relevant"
	case LabelRelevant:
		return "relevant"
	default:
		return fmt.Sprintf("label(%d)", int(l))
	}
}

// OptionalLabel distinguishes an absent field from an explicit null.
type OptionalLabel struct {
	Set   bool
	Null  bool
	Value Label
}

func (o *OptionalLabel) UnmarshalJSON(data []byte) error {
	o.Set = true
	if strings.TrimSpace(string(data)) == "null" {
		o.Null = true
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("label must be 0, 1 or null")
	}
	o.Value = Label(n)
	return nil
}

// Label returns nil for an explicit null.
func (o OptionalLabel) Label() *Label {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}

// OptionalString distinguishes an absent field from an explicit null.
type OptionalString struct {
	Set   bool
	Null  bool
	Value string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if strings.TrimSpace(string(data)) == "null" {
		o.Null = true
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return errors.New("reason must be a string or null")
	}
	return nil
}

// String returns nil for null or blank values.
func (o OptionalString) String() *string {
	if !o.Set || o.Null {
		return nil
	}
	v := strings.TrimSpace(o.Value)
	if v == "" {
		return nil
	}
	return &v
}

type ItemFeedback struct {
	ID     ItemID  `json:"id"`
	Label  Label   `json:"label"`
	Reason *string `json:"reason,omitempty"`
}

// ResultSnapshot is the lightweight copy of a returned result kept with the feedback record.
type ResultSnapshot struct {
	ID         ItemID   `json:"id"`
	Rank       int      `json:"rank"`
	Year       string   `json:"year,omitempty"`
	Title      string   `json:"title,omitempty"`
	DenseRank  *int     `json:"dense_rank,omitempty"`
	DenseScore *float64 `json:"dense_score,omitempty"`
	LexRank    *int     `json:"lex_rank,omitempty"`
	LexScore   *float64 `json:"lex_score,omitempty"`
	FusedScore float64  `json:"fused_score"`
}

func SnapshotResults(results []EnrichedResult) []ResultSnapshot {
	out := make([]ResultSnapshot, 0, len(results))
	for i, r := range results {
		out = append(out, ResultSnapshot{
			ID:         r.ID,
			Rank:       i + 1,
			Year:       r.Year,
			Title:      r.Title,
			DenseRank:  r.DenseRank,
			DenseScore: r.DenseScore,
			LexRank:    r.LexRank,
			LexScore:   r.LexScore,
			FusedScore: r.FusedScore,
		})
	}
	return out
}

type FeedbackRecord struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Query          string           `json:"query"`
	Filters        FilterSpec       `json:"filters"`
	Results        []ResultSnapshot `json:"results"`
	GlobalFeedback *Label           `json:"global_feedback"`
	GlobalReason   *string          `json:"global_reason"`
	ItemFeedback   []ItemFeedback   `json:"item_feedback"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FindItemFeedback returns the entry for id, if any.
func (r *FeedbackRecord) FindItemFeedback(id ItemID) (ItemFeedback, bool) {
	for _, entry := range r.ItemFeedback {
		if entry.ID == id {
			return entry, true
		}
	}
	return ItemFeedback{}, false
}

type ItemFeedbackUpdate struct {
	ID     *ItemID        `json:"id"`
	Label  OptionalLabel  `json:"label"`
	Reason OptionalString `json:"reason"`
}

// FeedbackUpdate is one client mutation against a feedback record.
type FeedbackUpdate struct {
	FeedbackID     string
	UserID         string
	GlobalFeedback OptionalLabel
	GlobalReason   OptionalString
	Item           *ItemFeedbackUpdate
	Query          string
	Filters        FilterSpec
	Results        []ResultSnapshot
}

// FeedbackPatch lists the columns a mutation overwrites.
type FeedbackPatch struct {
	SetGlobalFeedback bool
	GlobalFeedback    *Label
	SetGlobalReason   bool
	GlobalReason      *string
	SetItemFeedback   bool
	ItemFeedback      []ItemFeedback
}

func (p FeedbackPatch) IsEmpty() bool {
	return !p.SetGlobalFeedback && !p.SetGlobalReason && !p.SetItemFeedback
}

// FeedbackRow is the mutable part of a record as persisted.
type FeedbackRow struct {
	ID             string         `json:"id"`
	GlobalFeedback *Label         `json:"global_feedback"`
	GlobalReason   *string        `json:"global_reason"`
	ItemFeedback   []ItemFeedback `json:"item_feedback"`
}

type FeedbackResult struct {
	OK         bool        `json:"ok"`
	FeedbackID string      `json:"feedback_id"`
	Row        FeedbackRow `json:"row"`
}

type FeedbackEventKind string

const (
	FeedbackEventCreated FeedbackEventKind = "created"
	FeedbackEventUpdated FeedbackEventKind = "updated"
)

// FeedbackEvent is published after a feedback record is written.
type FeedbackEvent struct {
	Kind           FeedbackEventKind `json:"kind"`
	FeedbackID     string            `json:"feedback_id"`
	UserID         string            `json:"user_id"`
	GlobalChanged  bool              `json:"global_changed"`
	GlobalFeedback *Label            `json:"global_feedback,omitempty"`
	ItemID         *ItemID           `json:"item_id,omitempty"`
	ItemLabel      *Label            `json:"item_label,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}
