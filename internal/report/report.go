// Package report renders one run's outcome for humans and dumps the full
// artifacts for later inspection.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dispatch"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/pipeline"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/triage"
)

// Entry is one ranked plan line.
type Entry struct {
	Rank      int     `json:"rank"`
	DossierID string  `json:"dossier_id"`
	Company   string  `json:"company"`
	Role      string  `json:"role"`
	Score     float64 `json:"score"`
	Tier      string  `json:"tier"`
	Kind      string  `json:"kind"`
	Note      string  `json:"note"`
}

// Quarantine is one unparseable posting with the reason it was set aside.
type Quarantine struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Artifacts is the full, serializable outcome of one run.
type Artifacts struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Entries     []Entry            `json:"entries"`
	Rejections  []triage.Verdict   `json:"rejections"`
	Failures    []pipeline.Failure `json:"failures,omitempty"`
	Quarantined []Quarantine       `json:"quarantined,omitempty"`
}

// Build folds a pipeline result into reportable artifacts.
func Build(result *pipeline.Result) *Artifacts {
	a := &Artifacts{GeneratedAt: time.Now()}

	for _, action := range result.Actions {
		a.Entries = append(a.Entries, Entry{
			Rank:      action.Rank,
			DossierID: action.DossierID,
			Company:   action.Company,
			Role:      action.Role,
			Score:     action.Score,
			Tier:      action.Tier,
			Kind:      action.Kind,
			Note:      action.Note,
		})
	}

	a.Rejections = result.Rejected
	a.Failures = result.Failures

	for _, q := range result.Quarantined {
		a.Quarantined = append(a.Quarantined, Quarantine{Source: q.Source, Reason: q.Reason()})
	}

	return a
}

// Summary renders the plan as console text, advisories first.
func (a *Artifacts) Summary() string {
	var b strings.Builder

	if len(a.Entries) == 0 {
		b.WriteString("No dossiers survived to ranking.\n")
	} else {
		b.WriteString("Action plan:\n")
		for _, e := range a.Entries {
			marker := "apply"
			if e.Kind == dispatch.KindRejection {
				marker = "skip"
			}
			fmt.Fprintf(&b, "  %2d. [%s/%s] %s at %s (score %.1f) %s\n",
				e.Rank, marker, e.Tier, orUnknown(e.Role), orUnknown(e.Company), e.Score, e.Note)
		}
	}

	if len(a.Rejections) > 0 {
		fmt.Fprintf(&b, "Rejected at triage (%d):\n", len(a.Rejections))
		for _, r := range a.Rejections {
			fmt.Fprintf(&b, "  - %s: %s (%s)\n", r.DossierID, r.Reason, r.Constraint)
		}
	}

	if len(a.Failures) > 0 {
		fmt.Fprintf(&b, "Failed mid-pipeline (%d):\n", len(a.Failures))
		for _, f := range a.Failures {
			fmt.Fprintf(&b, "  - %s at %s: %s\n", f.DossierID, f.Stage, f.Reason)
		}
	}

	if len(a.Quarantined) > 0 {
		fmt.Fprintf(&b, "Quarantined input (%d):\n", len(a.Quarantined))
		for _, q := range a.Quarantined {
			fmt.Fprintf(&b, "  - %s: %s\n", q.Source, q.Reason)
		}
	}

	return b.String()
}

// DumpToTmpFile writes the artifacts as indented JSON and returns the path.
func (a *Artifacts) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "action_plan_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unknown)"
	}
	return s
}
