package report

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dispatch"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/pipeline"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/triage"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Actions: []dispatch.Action{
			{DossierID: "d-1", Company: "Acme", Role: "Backend Engineer",
				Kind: dispatch.KindAdvisory, Tier: dispatch.TierHigh, Rank: 1, Score: 92, Note: "strong fit"},
			{DossierID: "d-2", Company: "Globex", Role: "SRE",
				Kind: dispatch.KindRejection, Tier: dispatch.TierLow, Rank: 2, Score: 40, Note: "below the bar"},
		},
		Rejected: []triage.Verdict{
			{DossierID: "d-3", Constraint: "deal_breakers", Reason: "location matches deal-breaker"},
		},
	}
}

func TestBuildAndSummary(t *testing.T) {
	artifacts := Build(sampleResult())

	if len(artifacts.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(artifacts.Entries))
	}

	summary := artifacts.Summary()
	for _, want := range []string{"Acme", "apply/high", "skip/low", "deal_breakers"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestSummaryEmptyRun(t *testing.T) {
	artifacts := Build(&pipeline.Result{})

	if !strings.Contains(artifacts.Summary(), "No dossiers survived") {
		t.Fatalf("empty run needs an explicit message")
	}
}

func TestDumpToTmpFile(t *testing.T) {
	artifacts := Build(sampleResult())

	path, err := artifacts.DumpToTmpFile()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}

	var decoded Artifacts
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("dump must be valid json: %v", err)
	}
	if len(decoded.Entries) != 2 {
		t.Fatalf("dump lost entries, got %d", len(decoded.Entries))
	}
}
