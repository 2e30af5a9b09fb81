package dispatch

import (
	"errors"
	"math"
	"testing"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/reflector"
)

func TestDispatchTiers(t *testing.T) {
	d, err := New(DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ranked := []reflector.Scored{
		{DossierID: "d-1", Score: 92, Rank: 1},
		{DossierID: "d-2", Score: 78, Rank: 2},
		{DossierID: "d-3", Score: 55, Rank: 3},
	}

	actions, err := d.Dispatch(ranked)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(actions) != 3 {
		t.Fatalf("expected one action per entry, got %d", len(actions))
	}

	wantTiers := []string{TierHigh, TierMedium, TierLow}
	wantKinds := []string{KindAdvisory, KindAdvisory, KindRejection}
	for i, action := range actions {
		if action.Tier != wantTiers[i] {
			t.Fatalf("entry %d: expected tier %q, got %q", i, wantTiers[i], action.Tier)
		}
		if action.Kind != wantKinds[i] {
			t.Fatalf("entry %d: expected kind %q, got %q", i, wantKinds[i], action.Kind)
		}
	}
}

func TestDispatchBoundaryScoresAreInclusive(t *testing.T) {
	d, err := New(DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	actions, err := d.Dispatch([]reflector.Scored{
		{DossierID: "d-high", Score: 85, Rank: 1},
		{DossierID: "d-medium", Score: 70, Rank: 2},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if actions[0].Tier != TierHigh {
		t.Fatalf("score equal to the high threshold must be high, got %q", actions[0].Tier)
	}
	if actions[1].Tier != TierMedium {
		t.Fatalf("score equal to the medium threshold must be medium, got %q", actions[1].Tier)
	}
}

func TestDispatchInvalidScoreAborts(t *testing.T) {
	d, err := New(DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	_, err = d.Dispatch([]reflector.Scored{
		{DossierID: "d-1", Score: 90, Rank: 1},
		{DossierID: "d-2", Score: math.NaN(), Rank: 2},
	})

	if !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
}

func TestNewRejectsInvertedThresholds(t *testing.T) {
	if _, err := New(Thresholds{High: 50, Medium: 70}, nil); err == nil {
		t.Fatalf("expected error for high threshold below medium")
	}
}
