package usecase

import (
	"sort"

	"github.com/kirillkom/research-search/internal/core/domain"
)

// rankCandidates turns branch output into one ranking for the given mode.
func rankCandidates(mode domain.RetrievalMode, branches domain.BranchResults, rrfK int) []domain.Candidate {
	switch mode {
	case domain.ModeDenseOnly:
		return passThrough(branches.Dense, true)
	case domain.ModeLexicalOnly:
		return passThrough(branches.Lexical, false)
	default:
		return fuseRRF(branches.Dense, branches.Lexical, rrfK)
	}
}

// fuseRRF folds the dense list and then the lexical list into one accumulator.
// Ranks are 1-indexed; equal scores keep first-seen order.
func fuseRRF(dense, lexical []domain.BranchHit, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	index := make(map[domain.ItemID]int, len(dense)+len(lexical))
	out := make([]domain.Candidate, 0, len(dense)+len(lexical))

	fold := func(hits []domain.BranchHit, isDense bool) {
		seen := make(map[domain.ItemID]struct{}, len(hits))
		for i, hit := range hits {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}

			pos, ok := index[hit.ID]
			if !ok {
				pos = len(out)
				index[hit.ID] = pos
				out = append(out, domain.Candidate{ID: hit.ID})
			}
			candidate := &out[pos]
			if len(candidate.Payload) == 0 {
				candidate.Payload = hit.Payload
			}

			rank := i + 1
			score := hit.Score
			candidate.FusedScore += 1.0 / float64(rrfK+rank)
			if isDense {
				candidate.DenseRank = &rank
				candidate.DenseScore = &score
			} else {
				candidate.LexRank = &rank
				candidate.LexScore = &score
			}
		}
	}

	fold(dense, true)
	fold(lexical, false)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FusedScore > out[j].FusedScore
	})
	return out
}

// passThrough keeps branch order; the fused score is the branch score.
func passThrough(hits []domain.BranchHit, isDense bool) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(hits))
	seen := make(map[domain.ItemID]struct{}, len(hits))
	for _, hit := range hits {
		if _, dup := seen[hit.ID]; dup {
			continue
		}
		seen[hit.ID] = struct{}{}

		rank := len(out) + 1
		score := hit.Score
		candidate := domain.Candidate{
			ID:         hit.ID,
			Payload:    hit.Payload,
			FusedScore: score,
		}
		if isDense {
			candidate.DenseRank = &rank
			candidate.DenseScore = &score
		} else {
			candidate.LexRank = &rank
			candidate.LexScore = &score
		}
		out = append(out, candidate)
	}
	return out
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
