// Package pipeline drives one scoring run end to end: intake, grounding,
// triage, council routing, panel assessment, then the cross-batch ranking and
// dispatch stages. Per-dossier stages run in parallel; ranking waits for the
// whole batch, because a rank is only meaningful across all survivors.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/council"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dispatch"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/intake"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/logger"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/memory"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/panel"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/reflector"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/toolgw"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/triage"
)

const defaultParallelism = 4

// HistorySearcher serves past applications for history-aware scoring.
// Satisfied by the memory store.
type HistorySearcher interface {
	SearchHistory(ctx context.Context, query string, k int) ([]memory.HistoryRecord, error)
}

// Deps wires the pipeline stages together.
type Deps struct {
	Normalizer *intake.Normalizer
	Gateway    *toolgw.Gateway
	Gate       *triage.Gate
	Roster     *council.Roster
	Panel      *panel.Panel
	History    HistorySearcher
	Reflector  *reflector.Reflector
	Dispatcher *dispatch.Dispatcher
	Profile    applicant.Profile

	Parallelism int
	Logger      *zap.Logger
}

// Failure is one dossier that errored mid-stage. Failures never abort the
// batch; they are reported alongside the ranking.
type Failure struct {
	DossierID string `json:"dossier_id"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
}

// Result is everything one run produced. Inputs are kept so the caller can
// re-rank under refined weights without re-running the expensive stages.
type Result struct {
	Batch       *dossier.Dossiers
	Quarantined []intake.Quarantined
	Verdicts    []triage.Verdict
	Rejected    []triage.Verdict
	Failures    []Failure
	Inputs      []reflector.Input
	Ranked      []reflector.Scored
	Actions     []dispatch.Action
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) (*Pipeline, error) {
	if deps.Normalizer == nil || deps.Gateway == nil || deps.Gate == nil ||
		deps.Roster == nil || deps.Panel == nil || deps.Reflector == nil ||
		deps.Dispatcher == nil {
		return nil, fmt.Errorf("pipeline is missing a stage dependency")
	}
	if deps.Parallelism <= 0 {
		deps.Parallelism = defaultParallelism
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps}, nil
}

type slot struct {
	verdict triage.Verdict
	input   *reflector.Input
	failure *Failure
}

// Run executes one batch. Only an invalid score or a cancelled context aborts
// the run; everything else degrades to per-dossier verdicts and failures. An
// aborted run still returns the partial Result built so far, so callers can
// report the dossiers that did complete.
func (p *Pipeline) Run(ctx context.Context, sources []intake.Source) (*Result, error) {
	log := p.deps.Logger

	batch, quarantined := p.deps.Normalizer.NormalizeBatch(sources)
	log.Info("intake complete",
		zap.Int("postings", len(sources)),
		zap.Int("dossiers", batch.Len()),
		zap.Int("quarantined", len(quarantined)),
	)

	rawBySource := make(map[string]string, len(sources))
	for _, src := range sources {
		rawBySource[src.Name] = src.Content
	}

	slots := make([]slot, batch.Len())

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.deps.Parallelism)

	for i, d := range batch.Items {
		group.Go(func() error {
			slots[i] = p.process(gctx, d, rawBySource[d.Provenance.Source])
			return gctx.Err()
		})
	}

	waitErr := group.Wait()

	result := &Result{Batch: batch, Quarantined: quarantined}
	for _, s := range slots {
		if s.verdict.DossierID == "" {
			// Never processed before an abort.
			continue
		}
		result.Verdicts = append(result.Verdicts, s.verdict)
		if !s.verdict.Passed {
			result.Rejected = append(result.Rejected, s.verdict)
			continue
		}
		if s.failure != nil {
			result.Failures = append(result.Failures, *s.failure)
			continue
		}
		if s.input != nil {
			result.Inputs = append(result.Inputs, *s.input)
		}
	}

	if waitErr != nil {
		return result, fmt.Errorf("batch aborted: %w", waitErr)
	}

	ranked, err := p.deps.Reflector.Rank(result.Inputs)
	if err != nil {
		return result, fmt.Errorf("rank batch: %w", err)
	}
	result.Ranked = ranked

	actions, err := p.deps.Dispatcher.Dispatch(ranked)
	if err != nil {
		return result, err
	}
	result.Actions = actions

	log.Info("run complete",
		zap.Int("ranked", len(result.Ranked)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("failures", len(result.Failures)),
	)

	return result, nil
}

// process runs the per-dossier stages: grounding, triage, routing, panel and
// history retrieval.
func (p *Pipeline) process(ctx context.Context, d *dossier.Dossier, raw string) slot {
	log := p.deps.Logger

	facts := intake.GroundFacts(ctx, p.deps.Gateway, d, raw)

	verdict := p.deps.Gate.Evaluate(d, p.deps.Profile, facts)
	if !verdict.Passed {
		return slot{verdict: verdict}
	}

	routed := p.deps.Roster.Route(d, p.deps.Profile)

	assessments, err := p.deps.Panel.Run(ctx, d, routed, facts)
	if err != nil {
		log.Warn("panel failed for dossier",
			append(logger.StageFields("panel", d.ID), zap.Error(err))...,
		)
		return slot{verdict: verdict, failure: &Failure{
			DossierID: d.ID,
			Stage:     "panel",
			Reason:    err.Error(),
		}}
	}

	var history []memory.HistoryRecord
	if p.deps.History != nil {
		history, err = p.deps.History.SearchHistory(ctx, d.Company+" "+d.Role, 3)
		if err != nil {
			// History is advisory; score without it.
			log.Warn("history retrieval failed",
				append(logger.StageFields("history", d.ID), zap.Error(err))...,
			)
			history = nil
		}
	}

	return slot{verdict: verdict, input: &reflector.Input{
		Dossier:     d,
		Assessments: assessments,
		History:     history,
	}}
}
