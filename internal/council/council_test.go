package council

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
)

func routedNames(categories []Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

func TestRouteMatchesSpecialists(t *testing.T) {
	roster := DefaultRoster(nil)

	d := &dossier.Dossier{
		ID:        "d-1",
		Role:      "Staff Backend Engineer",
		Seniority: "staff",
		Requirements: []dossier.Requirement{
			{Text: "Go and Kubernetes", Tag: dossier.TagHard},
			{Text: "mentor junior engineers", Tag: dossier.TagSoft},
		},
	}

	routed := roster.Route(d, applicant.Profile{})

	if len(routed) == 0 {
		t.Fatalf("routing must never return an empty set")
	}

	got := map[string]bool{}
	for _, name := range routedNames(routed) {
		got[name] = true
	}
	if !got["tech_lead"] {
		t.Fatalf("expected tech_lead for a Go posting, routed: %v", routedNames(routed))
	}
	if !got["leadership_scout"] {
		t.Fatalf("expected leadership_scout for a staff role, routed: %v", routedNames(routed))
	}
	if got["generalist"] {
		t.Fatalf("fallback must not fire when specialists match")
	}
}

func TestRouteFallsBackToGeneralist(t *testing.T) {
	roster := DefaultRoster(nil)

	d := &dossier.Dossier{
		ID:   "d-2",
		Role: "Pastry Chef",
		Requirements: []dossier.Requirement{
			{Text: "croissant lamination", Tag: dossier.TagHard},
		},
	}

	routed := roster.Route(d, applicant.Profile{})

	if len(routed) != 1 || routed[0].Name != "generalist" {
		t.Fatalf("expected only the generalist, got %v", routedNames(routed))
	}
}

func TestRouteSponsorshipTrigger(t *testing.T) {
	roster := DefaultRoster(nil)

	d := &dossier.Dossier{
		ID:   "d-3",
		Role: "Backend Engineer",
		Requirements: []dossier.Requirement{
			{Text: "Go", Tag: dossier.TagHard},
		},
	}

	routed := roster.Route(d, applicant.Profile{NeedsSponsorship: true})

	found := false
	for _, c := range routed {
		if c.Name == "visa_officer" {
			found = true
		}
	}
	if !found {
		t.Fatalf("visa_officer must be routed when sponsorship is needed, got %v", routedNames(routed))
	}
}

func TestRoutePreservesRosterOrder(t *testing.T) {
	roster := DefaultRoster(nil)

	d := &dossier.Dossier{
		ID:   "d-4",
		Role: "ML Research Engineer",
		Requirements: []dossier.Requirement{
			{Text: "publications in machine learning", Tag: dossier.TagHard},
			{Text: "Go backend services", Tag: dossier.TagHard},
		},
	}

	routed := routedNames(roster.Route(d, applicant.Profile{}))

	posTech, posAcad := -1, -1
	for i, name := range routed {
		switch name {
		case "tech_lead":
			posTech = i
		case "academic_reviewer":
			posAcad = i
		}
	}
	if posTech == -1 || posAcad == -1 {
		t.Fatalf("expected both tech_lead and academic_reviewer, got %v", routed)
	}
	if posTech > posAcad {
		t.Fatalf("routing must preserve roster declaration order, got %v", routed)
	}
}

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	content := `experts:
  - name: backend_reviewer
    keywords: [go, grpc]
  - name: catch_all
    fallback: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	roster, err := LoadRoster(path, nil)
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	if len(roster.Categories) != 2 {
		t.Fatalf("expected 2 experts, got %d", len(roster.Categories))
	}
}

func TestLoadRosterRequiresFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	content := `experts:
  - name: backend_reviewer
    keywords: [go]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	if _, err := LoadRoster(path, nil); err == nil {
		t.Fatalf("roster without a fallback must be rejected")
	}
}
