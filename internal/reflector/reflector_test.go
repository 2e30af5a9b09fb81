package reflector

import (
	"testing"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/memory"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/panel"
)

func assessment(levels []string, effort string) panel.Assessment {
	a := panel.Assessment{Effort: effort}
	for _, level := range levels {
		a.Verdicts = append(a.Verdicts, panel.RequirementVerdict{Level: level})
	}
	return a
}

func input(id string, levels []string, effort string) Input {
	return Input{
		Dossier:     &dossier.Dossier{ID: id},
		Assessments: []panel.Assessment{assessment(levels, effort)},
	}
}

func TestScoreComponents(t *testing.T) {
	r := New(DefaultWeights(), nil)

	in := input("d-1", []string{panel.LevelMatch, panel.LevelPartial, panel.LevelGap, panel.LevelMatch}, panel.EffortMedium)

	scored, err := r.Score(in)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	if scored.MatchRatio != 0.625 {
		t.Fatalf("expected match ratio 0.625, got %f", scored.MatchRatio)
	}
	if scored.EffortCost != 3 {
		t.Fatalf("expected medium effort cost 3, got %f", scored.EffortCost)
	}
	// 100*0.625 - 3 + 0
	if scored.Score != 59.5 {
		t.Fatalf("expected score 59.5, got %f", scored.Score)
	}
}

func TestScoreRequiresAssessments(t *testing.T) {
	r := New(DefaultWeights(), nil)

	_, err := r.Score(Input{Dossier: &dossier.Dossier{ID: "d-empty"}})
	if err == nil {
		t.Fatalf("expected error for dossier with no assessments")
	}
}

func TestHistoryAdjustments(t *testing.T) {
	r := New(DefaultWeights(), nil)

	cases := []struct {
		name    string
		history []memory.HistoryRecord
		want    float64
	}{
		{"no history", nil, 0},
		{"pending", []memory.HistoryRecord{{Outcome: memory.OutcomePending}}, 0},
		{"interview", []memory.HistoryRecord{{Outcome: memory.OutcomeInterview}}, 5},
		{"offer", []memory.HistoryRecord{{Outcome: memory.OutcomeOffer}}, 10},
		{"rejected", []memory.HistoryRecord{{Outcome: memory.OutcomeRejected}}, -5},
		{"rejected with reason", []memory.HistoryRecord{{Outcome: memory.OutcomeRejected, Reason: "visa"}}, -10},
	}

	for _, tc := range cases {
		in := input("d-1", []string{panel.LevelMatch}, panel.EffortLow)
		in.History = tc.history

		scored, err := r.Score(in)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if scored.HistoryAdj != tc.want {
			t.Fatalf("%s: expected adjustment %f, got %f", tc.name, tc.want, scored.HistoryAdj)
		}
	}
}

func TestPastRejectionRanksBelowCleanTwin(t *testing.T) {
	r := New(DefaultWeights(), nil)

	clean := input("d-clean", []string{panel.LevelMatch, panel.LevelMatch}, panel.EffortLow)
	burned := input("d-burned", []string{panel.LevelMatch, panel.LevelMatch}, panel.EffortLow)
	burned.History = []memory.HistoryRecord{{Outcome: memory.OutcomeRejected, Reason: "visa"}}

	ranked, err := r.Rank([]Input{burned, clean})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	if ranked[0].DossierID != "d-clean" || ranked[1].DossierID != "d-burned" {
		t.Fatalf("past rejection must rank strictly lower, got %q then %q",
			ranked[0].DossierID, ranked[1].DossierID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("expected strictly lower score for the burned twin")
	}
}

func TestRankTotalOrderTieBreaks(t *testing.T) {
	r := New(DefaultWeights(), nil)

	// Identical assessments; the final tie-break is dossier id ascending.
	inputs := []Input{
		input("d-b", []string{panel.LevelMatch}, panel.EffortLow),
		input("d-a", []string{panel.LevelMatch}, panel.EffortLow),
	}

	ranked, err := r.Rank(inputs)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	if ranked[0].DossierID != "d-a" || ranked[1].DossierID != "d-b" {
		t.Fatalf("expected id tie-break, got %q then %q", ranked[0].DossierID, ranked[1].DossierID)
	}
	if ranked[0].Rank != 1 || ranked[1].Rank != 2 {
		t.Fatalf("ranks must be 1-based and unique, got %d and %d", ranked[0].Rank, ranked[1].Rank)
	}
}

func TestRankEffortBreaksScoreTies(t *testing.T) {
	weights := Weights{Match: 1, Effort: 0, History: 1}
	r := New(weights, nil)

	// Same match ratio, effort ignored in the score but not in the order.
	hard := input("d-hard", []string{panel.LevelMatch}, panel.EffortHigh)
	easy := input("d-easy", []string{panel.LevelMatch}, panel.EffortLow)

	ranked, err := r.Rank([]Input{hard, easy})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	if ranked[0].DossierID != "d-easy" {
		t.Fatalf("equal scores must prefer lower effort, got %q first", ranked[0].DossierID)
	}
}

func TestRankIdempotent(t *testing.T) {
	r := New(DefaultWeights(), nil)

	inputs := []Input{
		input("d-1", []string{panel.LevelMatch, panel.LevelGap}, panel.EffortMedium),
		input("d-2", []string{panel.LevelPartial}, panel.EffortLow),
		input("d-3", []string{panel.LevelMatch}, panel.EffortHigh),
	}

	first, err := r.Rank(inputs)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	second, err := r.Rank(inputs)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	for i := range first {
		if first[i].DossierID != second[i].DossierID || first[i].Rank != second[i].Rank {
			t.Fatalf("ranking must be idempotent, diverged at %d", i)
		}
	}
}

func TestRefineReordersWithoutMutatingWeights(t *testing.T) {
	r := New(DefaultWeights(), nil)

	strong := input("d-strong", []string{panel.LevelMatch, panel.LevelMatch}, panel.EffortHigh)
	cheap := input("d-cheap", []string{panel.LevelPartial, panel.LevelPartial}, panel.EffortLow)
	inputs := []Input{strong, cheap}

	base, err := r.Rank(inputs)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if base[0].DossierID != "d-strong" {
		t.Fatalf("expected the strong match to lead by default, got %q", base[0].DossierID)
	}

	refined, err := r.Refine(Weights{Match: 0.2, Effort: 5, History: 1}, inputs)
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if refined[0].DossierID != "d-cheap" {
		t.Fatalf("effort-heavy weights must promote the cheap dossier, got %q", refined[0].DossierID)
	}

	if r.Weights() != DefaultWeights() {
		t.Fatalf("refine must not mutate the reflector weights")
	}
}
