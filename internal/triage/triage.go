// Package triage applies the applicant's hard constraints to a dossier before
// any expensive reasoning is spent on it. Every dossier gets exactly one
// verdict; a rejected dossier never proceeds further.
package triage

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/logger"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/toolgw"
)

// ErrConstraintEvaluation marks a constraint that could not be evaluated
// unambiguously. The gate converts it into a fail-closed rejection asking for
// manual review instead of silently passing the dossier.
var ErrConstraintEvaluation = errors.New("constraint evaluation failed")

// Outcome of a single constraint check.
type Outcome int

const (
	Pass Outcome = iota
	Fail
	Unknown
)

// Result is one constraint's answer with its human-readable reason.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Constraint is one ordered hard-constraint check. FailClosed constraints
// reject a dossier even when the relevant evidence is unknown.
type Constraint interface {
	Name() string
	FailClosed() bool
	Evaluate(d *dossier.Dossier, p applicant.Profile, facts toolgw.Facts) (Result, error)
}

// Verdict is the gate's terminal decision for one dossier.
type Verdict struct {
	DossierID  string   `json:"dossier_id"`
	Passed     bool     `json:"passed"`
	Constraint string   `json:"constraint,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Caveats    []string `json:"caveats,omitempty"`
}

// Gate evaluates constraints in declaration order; the first failure decides
// the reject reason.
type Gate struct {
	constraints []Constraint
	logger      *zap.Logger
}

func NewGate(constraints []Constraint, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{constraints: constraints, logger: logger}
}

// Evaluate always terminates with a verdict; it never returns an error.
// Ambiguous constraint input produces a fail-closed "needs manual review"
// rejection.
func (g *Gate) Evaluate(d *dossier.Dossier, p applicant.Profile, facts toolgw.Facts) Verdict {
	verdict := Verdict{DossierID: d.ID, Passed: true}
	log := logger.WithStage(g.logger, "triage", d.ID)

	for _, c := range g.constraints {
		result, err := c.Evaluate(d, p, facts)
		if err != nil {
			log.Warn("constraint evaluation ambiguous, failing closed",
				zap.String("constraint", c.Name()),
				zap.Error(err),
			)
			return Verdict{
				DossierID:  d.ID,
				Passed:     false,
				Constraint: c.Name(),
				Reason:     fmt.Sprintf("needs manual review: %v", err),
			}
		}

		switch result.Outcome {
		case Fail:
			log.Info("dossier rejected",
				zap.String("constraint", c.Name()),
				zap.String("reason", result.Reason),
			)
			return Verdict{
				DossierID:  d.ID,
				Passed:     false,
				Constraint: c.Name(),
				Reason:     result.Reason,
			}
		case Unknown:
			if c.FailClosed() {
				log.Info("dossier rejected on unknown evidence",
					zap.String("constraint", c.Name()),
					zap.String("reason", result.Reason),
				)
				return Verdict{
					DossierID:  d.ID,
					Passed:     false,
					Constraint: c.Name(),
					Reason:     result.Reason,
				}
			}
			verdict.Caveats = append(verdict.Caveats,
				fmt.Sprintf("%s: %s", c.Name(), result.Reason))
		}
	}

	if len(verdict.Caveats) > 0 {
		log.Debug("dossier passed with caveats", zap.Strings("caveats", verdict.Caveats))
	}

	return verdict
}
