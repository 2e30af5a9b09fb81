package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/toolgw"
)

// LoadDir reads every .txt and .md posting in a directory, in name order so
// batch composition is stable across reruns.
func LoadDir(path string) ([]Source, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read postings dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	sources := make([]Source, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			return nil, fmt.Errorf("read posting %s: %w", name, err)
		}
		sources = append(sources, Source{Name: name, Content: string(raw)})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no postings found in %s", path)
	}

	return sources, nil
}

// GroundFacts runs the external grounding lookups for one dossier in
// parallel. Lookups never fail the dossier; unresolved ones come back as
// unknown facts.
func GroundFacts(ctx context.Context, gw *toolgw.Gateway, d *dossier.Dossier, raw string) toolgw.Facts {
	var salary, publications, sponsorship toolgw.ToolFact

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		salary = gw.Lookup(ctx, toolgw.ToolSalary, d.Role)
		return nil
	})
	group.Go(func() error {
		publications = gw.Lookup(ctx, toolgw.ToolPublications, d.Company)
		return nil
	})
	group.Go(func() error {
		sponsorship = gw.Lookup(ctx, toolgw.ToolSponsorship, raw)
		return nil
	})
	_ = group.Wait()

	return toolgw.Facts{
		toolgw.ToolSalary:       salary,
		toolgw.ToolPublications: publications,
		toolgw.ToolSponsorship:  sponsorship,
	}
}
