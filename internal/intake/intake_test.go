package intake

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
)

const samplePosting = `Role: Senior Backend Engineer
Company: Acme
Location: Berlin

Requirements:
- 5 years of Go
- Kubernetes in production
- Public speaking is a plus

Nice to have:
- Rust
`

func TestNormalizeExtractsFields(t *testing.T) {
	n := NewNormalizer(nil)

	d, err := n.Normalize(Source{Name: "acme.txt", Content: samplePosting})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if d.Role != "Senior Backend Engineer" {
		t.Fatalf("unexpected role %q", d.Role)
	}
	if d.Company != "Acme" || d.Location != "Berlin" {
		t.Fatalf("unexpected company/location %q/%q", d.Company, d.Location)
	}
	if d.Seniority != "senior" {
		t.Fatalf("seniority must be inferred from the role, got %q", d.Seniority)
	}
	if d.Incomplete {
		t.Fatalf("all fields present, dossier must not be incomplete: %v", d.MissingFields)
	}

	if len(d.Requirements) != 4 {
		t.Fatalf("expected 4 requirements, got %d: %+v", len(d.Requirements), d.Requirements)
	}
	if d.Requirements[0].Tag != dossier.TagHard {
		t.Fatalf("expected hard requirement, got %q", d.Requirements[0].Tag)
	}
	if d.Requirements[2].Tag != dossier.TagSoft {
		t.Fatalf("'a plus' wording must tag soft, got %q", d.Requirements[2].Tag)
	}
	if d.Requirements[3].Tag != dossier.TagSoft {
		t.Fatalf("nice-to-have section must tag soft, got %q", d.Requirements[3].Tag)
	}
}

func TestNormalizeStableID(t *testing.T) {
	n := NewNormalizer(nil)

	first, err := n.Normalize(Source{Name: "a.txt", Content: samplePosting})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	second, err := n.Normalize(Source{Name: "b.txt", Content: samplePosting})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("identical content must yield identical ids")
	}
}

func TestNormalizeMalformedInput(t *testing.T) {
	n := NewNormalizer(nil)

	for _, content := range []string{"", "   \n\t", "lorem ipsum dolor sit amet. nothing here."} {
		_, err := n.Normalize(Source{Name: "junk.txt", Content: content})
		if !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("content %q: expected ErrMalformedInput, got %v", content, err)
		}
	}
}

func TestNormalizeMarksMissingFields(t *testing.T) {
	n := NewNormalizer(nil)

	d, err := n.Normalize(Source{Name: "partial.txt", Content: "Role: Data Engineer\n"})
	if err != nil {
		t.Fatalf("partial content must not be quarantined: %v", err)
	}

	if !d.Incomplete {
		t.Fatalf("expected incomplete dossier")
	}
	if !d.Missing(dossier.FieldCompany) || !d.Missing(dossier.FieldRequirements) {
		t.Fatalf("expected company and requirements missing, got %v", d.MissingFields)
	}
	if d.Missing(dossier.FieldRole) {
		t.Fatalf("role was extracted, must not be missing")
	}
}

func TestNormalizeBatchDeduplicatesAndQuarantines(t *testing.T) {
	n := NewNormalizer(nil)

	sources := []Source{
		{Name: "a.txt", Content: samplePosting},
		{Name: "dup.txt", Content: samplePosting},
		{Name: "junk.txt", Content: "???"},
	}

	batch, quarantined := n.NormalizeBatch(sources)

	if batch.Len() != 1 {
		t.Fatalf("expected duplicate collapsed to one dossier, got %d", batch.Len())
	}
	if len(quarantined) != 1 || quarantined[0].Source != "junk.txt" {
		t.Fatalf("expected junk.txt quarantined, got %+v", quarantined)
	}
	if quarantined[0].Reason() == "" {
		t.Fatalf("quarantine must carry a reason")
	}
}

func TestLoadDirOrdersByName(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"b.txt":     "Role: B",
		"a.md":      "Role: A",
		"skip.json": "{}",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	sources, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}

	if len(sources) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(sources))
	}
	if sources[0].Name != "a.md" || sources[1].Name != "b.txt" {
		t.Fatalf("expected name order, got %q then %q", sources[0].Name, sources[1].Name)
	}
}

func TestLoadDirEmpty(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatalf("expected error for a dir with no postings")
	}
}
