package panel

import (
	"context"
	"strings"
	"unicode"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
)

// LexicalAssessor is the deterministic fallback expert used when no model
// backend is configured. It judges each requirement by token overlap against
// the applicant's declared skills and retrieved evidence fragments, so the
// same inputs always yield the same verdicts.
type LexicalAssessor struct {
	Profile applicant.Profile
}

func (l *LexicalAssessor) Assess(ctx context.Context, req Request) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	evidence := make([]string, 0, len(req.Fragments))
	for _, f := range req.Fragments {
		evidence = append(evidence, f.Content)
	}
	evidenceTokens := tokenSet(strings.Join(evidence, " "))

	flagged := make(map[string]bool, len(req.GapContext))
	for _, v := range req.GapContext {
		flagged[strings.ToLower(strings.TrimSpace(v.Requirement.Text))] = true
	}

	assessment := &Assessment{
		DossierID: req.Dossier.ID,
		Category:  req.Category.Name,
	}

	gaps, hardTotal := 0, 0
	matched := 0
	for _, r := range req.Dossier.Requirements {
		verdict := RequirementVerdict{Requirement: r}

		switch {
		case l.Profile.HasSkill(r.Text):
			verdict.Level = LevelMatch
			verdict.Note = "declared skill"
		case overlaps(evidenceTokens, r.Text):
			verdict.Level = LevelPartial
			verdict.Note = "related evidence on file"
		default:
			verdict.Level = LevelGap
			if flagged[strings.ToLower(strings.TrimSpace(r.Text))] {
				verdict.Note = "confirmed gap from the technical screen"
			}
		}

		if r.Tag == dossier.TagHard {
			hardTotal++
			if verdict.Level == LevelGap {
				gaps++
			}
		}
		if verdict.Level == LevelMatch {
			matched++
		}

		assessment.Verdicts = append(assessment.Verdicts, verdict)
	}

	switch {
	case gaps == 0:
		assessment.Effort = EffortLow
	case hardTotal > 0 && gaps*2 <= hardTotal:
		assessment.Effort = EffortMedium
	default:
		assessment.Effort = EffortHigh
	}

	// Gaps confirmed upstream mean tailoring work even when the local scan
	// looks clean.
	if len(req.GapContext) > 0 && assessment.Effort == EffortLow {
		assessment.Effort = EffortMedium
	}

	if n := len(assessment.Verdicts); n > 0 {
		assessment.Confidence = float64(matched) / float64(n)
	}

	return assessment, nil
}

func tokenSet(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			set[f] = true
		}
	}
	return set
}

func overlaps(evidence map[string]bool, text string) bool {
	for tok := range tokenSet(text) {
		if evidence[tok] {
			return true
		}
	}
	return false
}
