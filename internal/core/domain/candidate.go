package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ItemID identifies a research item. Requests may carry it as a number or a numeric string.
type ItemID int64

func (id *ItemID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("item id %s is not an integer", string(data))
	}
	*id = ItemID(n)
	return nil
}

// Payload is the stored item document. Only the projected fields are interpreted.
type Payload []byte

func (p Payload) MarshalJSON() ([]byte, error) {
	body := p.document()
	if len(body) == 0 || !json.Valid(body) {
		return []byte("null"), nil
	}
	return body, nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// Scan accepts jsonb/json/text columns.
func (p *Payload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case []byte:
		*p = append(Payload(nil), v...)
	case string:
		*p = Payload(v)
	default:
		return fmt.Errorf("payload: unsupported scan type %T", src)
	}
	return nil
}

// document unwraps payloads that were stored as a JSON-encoded string.
func (p Payload) document() []byte {
	body := bytes.TrimSpace(p)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err == nil {
			return bytes.TrimSpace([]byte(inner))
		}
	}
	return body
}

type SourceInfo struct {
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Projection is the typed view over a Payload.
type Projection struct {
	Title    string
	Abstract string
	Year     string
	DOI      string
	ScopusID string
	Source   *SourceInfo
}

type payloadEnvelope struct {
	Title      string          `json:"title"`
	Abstract   string          `json:"abstract"`
	Year       json.RawMessage `json:"year"`
	DOI        string          `json:"doi"`
	ScopusID   json.RawMessage `json:"scopus_id"`
	Source     json.RawMessage `json:"source"`
	SourceType string          `json:"source_type"`
}

// Project decodes the fields used by result rendering and feedback snapshots.
// Malformed payloads yield an empty projection.
func (p Payload) Project() Projection {
	var env payloadEnvelope
	if err := json.Unmarshal(p.document(), &env); err != nil {
		return Projection{}
	}
	out := Projection{
		Title:    strings.TrimSpace(env.Title),
		Abstract: strings.TrimSpace(env.Abstract),
		Year:     scalarString(env.Year),
		DOI:      strings.TrimSpace(env.DOI),
		ScopusID: scalarString(env.ScopusID),
	}

	var source SourceInfo
	if len(env.Source) > 0 && json.Unmarshal(env.Source, &source) == nil {
		out.Source = &source
	} else if title := scalarString(env.Source); title != "" {
		out.Source = &SourceInfo{Title: title}
	}
	if env.SourceType != "" {
		if out.Source == nil {
			out.Source = &SourceInfo{}
		}
		if out.Source.Type == "" {
			out.Source.Type = env.SourceType
		}
	}
	return out
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// BranchHit is one row of a ranked branch, best first.
type BranchHit struct {
	ID      ItemID
	Payload Payload
	Score   float64
}

// BranchResults holds the ranked output of each executed branch.
type BranchResults struct {
	Dense   []BranchHit
	Lexical []BranchHit
}

// Candidate is a retrieved item carrying per-branch provenance.
type Candidate struct {
	ID         ItemID   `json:"id"`
	Payload    Payload  `json:"data"`
	DenseRank  *int     `json:"dense_rank"`
	DenseScore *float64 `json:"dense_score"`
	LexRank    *int     `json:"lex_rank"`
	LexScore   *float64 `json:"lex_score"`
	FusedScore float64  `json:"fused_score"`
}

// Author is one byline entry. VerifiedID links the author to a verified research entity.
type Author struct {
	Position   int    `json:"position"`
	Name       string `json:"name"`
	VerifiedID *int64 `json:"verified_id"`
}

type TypeInfo struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Category      string `json:"type"`
	CategoryLabel string `json:"type_label"`
}

// ResearchEntity is a verifying person or group; Data is its stored document
// (name, surname and so on).
type ResearchEntity struct {
	ID   int64   `json:"id"`
	Data Payload `json:"data"`
}

type VerifiedEntity struct {
	EntityID       int64           `json:"entity_id"`
	EntityType     string          `json:"entity_type"`
	Position       int             `json:"position"`
	ResearchEntity *ResearchEntity `json:"research_entity"`
}

// Enrichment is the relational metadata attached to a set of items.
type Enrichment struct {
	Authors  map[ItemID][]Author
	Types    map[ItemID]TypeInfo
	Verified map[ItemID][]VerifiedEntity
}

type EnrichedResult struct {
	Candidate

	Title    string           `json:"title"`
	Abstract string           `json:"abstract"`
	Year     string           `json:"year,omitempty"`
	DOI      string           `json:"doi,omitempty"`
	ScopusID string           `json:"scopus_id,omitempty"`
	Source   *SourceInfo      `json:"source,omitempty"`
	Authors  []Author         `json:"authors"`
	Type     *TypeInfo        `json:"type"`
	Verified []VerifiedEntity `json:"verified"`
}
