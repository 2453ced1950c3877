package usecase

import (
	"testing"

	"github.com/kirillkom/research-search/internal/core/domain"
)

func hits(ids ...domain.ItemID) []domain.BranchHit {
	out := make([]domain.BranchHit, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.BranchHit{ID: id, Payload: domain.Payload(`{"title":"t"}`), Score: 1 - float64(i)*0.1})
	}
	return out
}

func TestFuseRRFScoresSumBranchTerms(t *testing.T) {
	const k = 50
	fused := fuseRRF(hits(1, 2, 3), hits(3, 4), k)

	byID := make(map[domain.ItemID]domain.Candidate, len(fused))
	for _, c := range fused {
		byID[c.ID] = c
	}
	if len(byID) != 4 {
		t.Fatalf("expected 4 fused candidates, got %d", len(byID))
	}

	both := byID[3]
	want := 1.0/float64(k+3) + 1.0/float64(k+1)
	if both.FusedScore != want {
		t.Fatalf("expected fused score %v for id 3, got %v", want, both.FusedScore)
	}
	if both.DenseRank == nil || *both.DenseRank != 3 || both.LexRank == nil || *both.LexRank != 1 {
		t.Fatalf("unexpected ranks for id 3: %+v", both)
	}

	denseOnly := byID[1]
	if denseOnly.FusedScore != 1.0/float64(k+1) {
		t.Fatalf("expected single term for id 1, got %v", denseOnly.FusedScore)
	}
	if denseOnly.LexRank != nil || denseOnly.LexScore != nil {
		t.Fatalf("expected null lexical provenance for id 1, got %+v", denseOnly)
	}

	lexOnly := byID[4]
	if lexOnly.DenseRank != nil || lexOnly.DenseScore != nil || *lexOnly.LexRank != 2 {
		t.Fatalf("unexpected provenance for id 4: %+v", lexOnly)
	}
}

func TestFuseRRFSortsDescendingWithDenseFirstTieBreak(t *testing.T) {
	fused := fuseRRF(hits(10), hits(20), 50)
	if len(fused) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(fused))
	}
	if fused[0].ID != 10 || fused[1].ID != 20 {
		t.Fatalf("expected dense-first tie-break, got %d then %d", fused[0].ID, fused[1].ID)
	}

	fused = fuseRRF(hits(1, 2, 3), hits(3, 2), 50)
	for i := 1; i < len(fused); i++ {
		if fused[i-1].FusedScore < fused[i].FusedScore {
			t.Fatalf("ranking not sorted at %d: %v < %v", i, fused[i-1].FusedScore, fused[i].FusedScore)
		}
	}
	if fused[0].ID != 3 {
		t.Fatalf("expected id 3 (in both branches, best lexical) first, got %d", fused[0].ID)
	}
}

func TestFuseRRFKeepsBranchScoresUntouched(t *testing.T) {
	dense := []domain.BranchHit{{ID: 1, Score: 0.91}}
	lexical := []domain.BranchHit{{ID: 1, Score: 7.5}}

	fused := fuseRRF(dense, lexical, 50)
	if *fused[0].DenseScore != 0.91 || *fused[0].LexScore != 7.5 {
		t.Fatalf("branch scores modified: %+v", fused[0])
	}
}

func TestPassThroughUsesBranchScoreAsFusedScore(t *testing.T) {
	out := rankCandidates(domain.ModeLexicalOnly, domain.BranchResults{Lexical: hits(5, 6)}, 50)
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[1].LexRank == nil || *out[1].LexRank != 2 || out[1].DenseRank != nil {
		t.Fatalf("unexpected ranks: %+v", out[1])
	}
	if out[1].FusedScore != *out[1].LexScore {
		t.Fatalf("expected fused score to equal branch score, got %v vs %v", out[1].FusedScore, *out[1].LexScore)
	}

	dense := rankCandidates(domain.ModeDenseOnly, domain.BranchResults{Dense: hits(7)}, 50)
	if *dense[0].DenseRank != 1 || dense[0].LexScore != nil {
		t.Fatalf("unexpected dense pass-through: %+v", dense[0])
	}
}

func TestTrimCandidatesKeepsTopK(t *testing.T) {
	fused := fuseRRF(hits(1, 2, 3, 4, 5), hits(5, 4), 50)
	top := trimCandidates(fused, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 results, got %d", len(top))
	}
	for _, c := range fused[3:] {
		if c.FusedScore > top[2].FusedScore {
			t.Fatalf("trimmed candidate %d outranks kept candidate", c.ID)
		}
	}
}
