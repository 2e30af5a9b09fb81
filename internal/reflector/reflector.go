// Package reflector turns per-dossier expert assessments into one comparable
// score and a strict total ranking across the whole batch. Ranking is
// deterministic: equal scores break by effort, then match ratio, then dossier
// id, so two dossiers never tie.
package reflector

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/memory"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/panel"
)

// Effort weights per expert assessment.
const (
	effortWeightLow    = 1.0
	effortWeightMedium = 3.0
	effortWeightHigh   = 10.0
)

// History adjustments, applied for the closest past application.
const (
	histAdjOffer          = 10.0
	histAdjInterview      = 5.0
	histAdjRejected       = -5.0
	histAdjRejectedReason = -10.0
)

// Weights tune the three scoring components. The zero value is not useful;
// use DefaultWeights as the base for refinement.
type Weights struct {
	Match   float64 `json:"match" mapstructure:"match"`
	Effort  float64 `json:"effort" mapstructure:"effort"`
	History float64 `json:"history" mapstructure:"history"`
}

func DefaultWeights() Weights {
	return Weights{Match: 1, Effort: 1, History: 1}
}

// Input is everything the reflector needs for one dossier.
type Input struct {
	Dossier     *dossier.Dossier
	Assessments []panel.Assessment
	History     []memory.HistoryRecord
}

// Scored is one ranked entry. Rank is 1-based and unique within a batch.
type Scored struct {
	DossierID  string  `json:"dossier_id"`
	Company    string  `json:"company"`
	Role       string  `json:"role"`
	Score      float64 `json:"score"`
	MatchRatio float64 `json:"match_ratio"`
	EffortCost float64 `json:"effort_cost"`
	HistoryAdj float64 `json:"history_adj"`
	Rank       int     `json:"rank"`
}

type Reflector struct {
	weights Weights
	logger  *zap.Logger
}

func New(weights Weights, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{weights: weights, logger: logger}
}

func (r *Reflector) Weights() Weights {
	return r.weights
}

// Score folds one dossier's assessments and history into a single score. A
// dossier with no assessments cannot be scored and is reported by id.
func (r *Reflector) Score(in Input) (Scored, error) {
	if in.Dossier == nil {
		return Scored{}, fmt.Errorf("input has no dossier")
	}
	if len(in.Assessments) == 0 {
		return Scored{}, fmt.Errorf("dossier %s has no assessments to score", in.Dossier.ID)
	}

	matchRatio := aggregateMatchRatio(in.Assessments)
	effortCost := aggregateEffortCost(in.Assessments)
	historyAdj := historyAdjustment(in.History)

	score := 100*r.weights.Match*matchRatio -
		r.weights.Effort*effortCost +
		r.weights.History*historyAdj

	return Scored{
		DossierID:  in.Dossier.ID,
		Company:    in.Dossier.Company,
		Role:       in.Dossier.Role,
		Score:      score,
		MatchRatio: matchRatio,
		EffortCost: effortCost,
		HistoryAdj: historyAdj,
	}, nil
}

// Rank scores every input and orders the batch. Running Rank twice over the
// same inputs yields the same order.
func (r *Reflector) Rank(inputs []Input) ([]Scored, error) {
	scored := make([]Scored, 0, len(inputs))
	for _, in := range inputs {
		s, err := r.Score(in)
		if err != nil {
			return nil, err
		}
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.EffortCost != b.EffortCost {
			return a.EffortCost < b.EffortCost
		}
		if a.MatchRatio != b.MatchRatio {
			return a.MatchRatio > b.MatchRatio
		}
		return a.DossierID < b.DossierID
	})

	for i := range scored {
		scored[i].Rank = i + 1
	}

	r.logger.Debug("batch ranked", zap.Int("entries", len(scored)))
	return scored, nil
}

// Refine re-ranks the same inputs under different weights, leaving the
// receiver's weights untouched.
func (r *Reflector) Refine(weights Weights, inputs []Input) ([]Scored, error) {
	return New(weights, r.logger).Rank(inputs)
}

// aggregateMatchRatio averages requirement verdicts across all experts:
// match counts 1, partial 0.5, gap 0.
func aggregateMatchRatio(assessments []panel.Assessment) float64 {
	total, sum := 0, 0.0
	for _, a := range assessments {
		for _, v := range a.Verdicts {
			total++
			switch v.Level {
			case panel.LevelMatch:
				sum += 1
			case panel.LevelPartial:
				sum += 0.5
			}
		}
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}

func aggregateEffortCost(assessments []panel.Assessment) float64 {
	cost := 0.0
	for _, a := range assessments {
		switch a.Effort {
		case panel.EffortHigh:
			cost += effortWeightHigh
		case panel.EffortLow:
			cost += effortWeightLow
		default:
			cost += effortWeightMedium
		}
	}
	return cost
}

// historyAdjustment reads the closest past application. A past rejection with
// a recorded reason weighs heaviest: the same structural blocker most likely
// still applies.
func historyAdjustment(history []memory.HistoryRecord) float64 {
	if len(history) == 0 {
		return 0
	}

	top := history[0]
	switch top.Outcome {
	case memory.OutcomeOffer:
		return histAdjOffer
	case memory.OutcomeInterview:
		return histAdjInterview
	case memory.OutcomeRejected:
		if top.Reason != "" {
			return histAdjRejectedReason
		}
		return histAdjRejected
	default:
		return 0
	}
}
