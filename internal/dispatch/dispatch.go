// Package dispatch converts the ranked batch into concrete actions. High and
// medium tiers become application advisories; the low tier becomes an
// explicit rejection so every dossier leaves the pipeline with a decision.
package dispatch

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/reflector"
)

// ErrInvalidScore marks a score the dispatcher cannot act on. This is a
// pipeline bug, not bad input, so the whole run aborts.
var ErrInvalidScore = errors.New("invalid score")

// Action tiers.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// Action kinds.
const (
	KindAdvisory  = "advisory"
	KindRejection = "rejection"
)

// Thresholds split the score range into tiers. High must not be below Medium.
type Thresholds struct {
	High   float64 `json:"high" mapstructure:"high"`
	Medium float64 `json:"medium" mapstructure:"medium"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{High: 85, Medium: 70}
}

// Action is one dispatched decision, ordered by rank.
type Action struct {
	DossierID string  `json:"dossier_id"`
	Company   string  `json:"company"`
	Role      string  `json:"role"`
	Kind      string  `json:"kind"`
	Tier      string  `json:"tier"`
	Rank      int     `json:"rank"`
	Score     float64 `json:"score"`
	Note      string  `json:"note"`
}

type Dispatcher struct {
	thresholds Thresholds
	logger     *zap.Logger
}

func New(thresholds Thresholds, logger *zap.Logger) (*Dispatcher, error) {
	if thresholds.High < thresholds.Medium {
		return nil, fmt.Errorf("high threshold %.1f below medium %.1f",
			thresholds.High, thresholds.Medium)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{thresholds: thresholds, logger: logger}, nil
}

// Dispatch walks the batch in rank order and emits exactly one action per
// entry. A non-finite score aborts the run with ErrInvalidScore.
func (d *Dispatcher) Dispatch(ranked []reflector.Scored) ([]Action, error) {
	actions := make([]Action, 0, len(ranked))

	for _, entry := range ranked {
		if math.IsNaN(entry.Score) || math.IsInf(entry.Score, 0) {
			return nil, fmt.Errorf("%w: dossier %s scored %f",
				ErrInvalidScore, entry.DossierID, entry.Score)
		}

		action := Action{
			DossierID: entry.DossierID,
			Company:   entry.Company,
			Role:      entry.Role,
			Rank:      entry.Rank,
			Score:     entry.Score,
		}

		switch {
		case entry.Score >= d.thresholds.High:
			action.Tier = TierHigh
			action.Kind = KindAdvisory
			action.Note = "strong fit, apply as-is"
		case entry.Score >= d.thresholds.Medium:
			action.Tier = TierMedium
			action.Kind = KindAdvisory
			action.Note = "viable fit, tailor the application first"
		default:
			action.Tier = TierLow
			action.Kind = KindRejection
			action.Note = "below the application bar, skip"
		}

		d.logger.Debug("action dispatched",
			zap.String("dossier_id", action.DossierID),
			zap.String("tier", action.Tier),
			zap.Float64("score", action.Score),
		)

		actions = append(actions, action)
	}

	return actions, nil
}
