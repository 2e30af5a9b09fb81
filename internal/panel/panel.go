// Package panel runs the routed expert assessments for one dossier. Each
// expert produces per-requirement verdicts plus an overall effort estimate;
// the panel grounds every assessment with retrieved profile evidence and
// normalizes the results so downstream scoring sees a complete verdict set.
package panel

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/council"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/memory"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/toolgw"
)

// Verdict levels for one requirement.
const (
	LevelMatch   = "match"
	LevelPartial = "partial"
	LevelGap     = "gap"
)

// Effort estimates for tailoring an application to the posting.
const (
	EffortLow    = "low"
	EffortMedium = "medium"
	EffortHigh   = "high"
)

const defaultFragmentK = 5

// RequirementVerdict is one expert's call on one requirement.
type RequirementVerdict struct {
	Requirement dossier.Requirement `json:"requirement"`
	Level       string              `json:"level"`
	Note        string              `json:"note,omitempty"`
}

// Assessment is one expert's full take on a dossier.
type Assessment struct {
	DossierID  string               `json:"dossier_id"`
	Category   string               `json:"category"`
	Verdicts   []RequirementVerdict `json:"verdicts"`
	Effort     string               `json:"effort"`
	Confidence float64              `json:"confidence"`
	Raw        string               `json:"raw,omitempty"`
}

// Request is everything an assessor gets to work with: the dossier, the
// expert seat it speaks for, retrieved applicant evidence, and any grounding
// facts gathered during intake. GapContext carries the hard-requirement gaps
// an earlier expert flagged, so an escalated seat judges whether transferable
// strengths offset them instead of re-screening blind.
type Request struct {
	Dossier    *dossier.Dossier
	Category   council.Category
	Fragments  []memory.Fragment
	Facts      toolgw.Facts
	GapContext []RequirementVerdict
}

// Assessor produces one expert assessment. Implementations must return a
// verdict for the requirements they can judge; the panel fills gaps with
// partial verdicts.
type Assessor interface {
	Assess(ctx context.Context, req Request) (*Assessment, error)
}

// Retriever serves profile evidence for grounding. Satisfied by the memory
// store.
type Retriever interface {
	SearchFragments(ctx context.Context, query string, k int) ([]memory.Fragment, error)
}

// Panel fans a dossier out to its routed experts.
type Panel struct {
	assessor  Assessor
	retriever Retriever
	roster    *council.Roster
	fragmentK int
	logger    *zap.Logger
}

func New(assessor Assessor, retriever Retriever, roster *council.Roster, logger *zap.Logger) *Panel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Panel{
		assessor:  assessor,
		retriever: retriever,
		roster:    roster,
		fragmentK: defaultFragmentK,
		logger:    logger,
	}
}

// Run assesses the dossier with every routed category in order. A tech_lead
// assessment that finds hard-requirement gaps escalates to the strategist
// seat so the gap gets a transferable-strengths second opinion. Run fails
// only when every expert fails; a partial panel is still a panel.
func (p *Panel) Run(ctx context.Context, d *dossier.Dossier, routed []council.Category, facts toolgw.Facts) ([]Assessment, error) {
	fragments := p.retrieve(ctx, d)

	type seat struct {
		category   council.Category
		gapContext []RequirementVerdict
	}

	seen := make(map[string]bool, len(routed))
	queue := make([]seat, 0, len(routed)+1)
	for _, c := range routed {
		if !seen[c.Name] {
			seen[c.Name] = true
			queue = append(queue, seat{category: c})
		}
	}

	var assessments []Assessment
	var lastErr error

	for i := 0; i < len(queue); i++ {
		category := queue[i].category

		assessment, err := p.assessor.Assess(ctx, Request{
			Dossier:    d,
			Category:   category,
			Fragments:  fragments,
			Facts:      facts,
			GapContext: queue[i].gapContext,
		})
		if err != nil {
			lastErr = fmt.Errorf("expert %s: %w", category.Name, err)
			p.logger.Warn("expert assessment failed",
				zap.String("dossier_id", d.ID),
				zap.String("category", category.Name),
				zap.Error(err),
			)
			continue
		}

		normalized := normalize(d, category.Name, *assessment)
		assessments = append(assessments, normalized)

		if category.Name == "tech_lead" && !seen["strategist"] {
			if gaps := hardGaps(d, normalized); len(gaps) > 0 {
				if strategist, ok := p.roster.Find("strategist"); ok {
					seen["strategist"] = true
					queue = append(queue, seat{category: strategist, gapContext: gaps})
					p.logger.Debug("escalating hard gaps to strategist",
						zap.String("dossier_id", d.ID),
						zap.Int("gaps", len(gaps)),
					)
				}
			}
		}
	}

	if len(assessments) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no expert produced an assessment: %w", lastErr)
		}
		return nil, fmt.Errorf("no expert produced an assessment for dossier %s", d.ID)
	}

	return assessments, nil
}

func (p *Panel) retrieve(ctx context.Context, d *dossier.Dossier) []memory.Fragment {
	if p.retriever == nil {
		return nil
	}

	var query strings.Builder
	query.WriteString(d.Role)
	for _, req := range d.Requirements {
		query.WriteString(" ")
		query.WriteString(req.Text)
	}

	fragments, err := p.retriever.SearchFragments(ctx, query.String(), p.fragmentK)
	if err != nil {
		p.logger.Warn("fragment retrieval failed, assessing without evidence",
			zap.String("dossier_id", d.ID),
			zap.Error(err),
		)
		return nil
	}
	return fragments
}

// normalize guarantees exactly one verdict per dossier requirement, in
// dossier declaration order. Requirements the expert skipped, and verdicts
// with unrecognized levels, become partial. Effort defaults to medium and
// confidence is clamped to [0, 1].
func normalize(d *dossier.Dossier, category string, a Assessment) Assessment {
	byText := make(map[string]RequirementVerdict, len(a.Verdicts))
	for _, v := range a.Verdicts {
		key := strings.ToLower(strings.TrimSpace(v.Requirement.Text))
		if _, ok := byText[key]; !ok {
			byText[key] = v
		}
	}

	verdicts := make([]RequirementVerdict, 0, len(d.Requirements))
	for _, req := range d.Requirements {
		key := strings.ToLower(strings.TrimSpace(req.Text))
		v, ok := byText[key]
		if !ok {
			v = RequirementVerdict{Requirement: req, Level: LevelPartial, Note: "not assessed"}
		} else {
			v.Requirement = req
			switch v.Level {
			case LevelMatch, LevelPartial, LevelGap:
			default:
				v.Level = LevelPartial
			}
		}
		verdicts = append(verdicts, v)
	}

	switch a.Effort {
	case EffortLow, EffortMedium, EffortHigh:
	default:
		a.Effort = EffortMedium
	}

	if a.Confidence < 0 {
		a.Confidence = 0
	} else if a.Confidence > 1 {
		a.Confidence = 1
	}

	a.DossierID = d.ID
	a.Category = category
	a.Verdicts = verdicts
	return a
}

func hardGaps(d *dossier.Dossier, a Assessment) []RequirementVerdict {
	var gaps []RequirementVerdict
	for _, v := range a.Verdicts {
		if v.Requirement.Tag == dossier.TagHard && v.Level == LevelGap {
			gaps = append(gaps, v)
		}
	}
	return gaps
}
