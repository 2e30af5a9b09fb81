// Package council routes each surviving dossier to the expert categories best
// placed to assess it. Routing is total: a dossier matching no specialist goes
// to the roster's fallback generalist, never to nobody.
package council

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
)

// Category is one expert seat on the council. A dossier is routed to it when
// any keyword appears in the posting text, its seniority matches, or the
// sponsorship trigger applies.
type Category struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Seniorities []string `yaml:"seniorities,omitempty"`

	// WhenSponsorship routes the category whenever the applicant needs visa
	// sponsorship, regardless of posting text.
	WhenSponsorship bool `yaml:"when-sponsorship,omitempty"`

	// Fallback categories catch dossiers that match no specialist.
	Fallback bool `yaml:"fallback,omitempty"`
}

// Roster is the ordered council. Declaration order is routing order.
type Roster struct {
	Categories []Category `yaml:"experts"`

	logger *zap.Logger
}

// LoadRoster reads a YAML roster file. The roster must declare at least one
// fallback category so routing stays total.
func LoadRoster(path string, logger *zap.Logger) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	if err := roster.validate(); err != nil {
		return nil, err
	}

	roster.logger = logger
	return &roster, nil
}

func (r *Roster) validate() error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("roster declares no experts")
	}

	seen := make(map[string]bool, len(r.Categories))
	hasFallback := false
	for _, c := range r.Categories {
		if c.Name == "" {
			return fmt.Errorf("roster has an unnamed expert")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate expert %q", c.Name)
		}
		seen[c.Name] = true
		if c.Fallback {
			hasFallback = true
		}
	}

	if !hasFallback {
		return fmt.Errorf("roster declares no fallback expert")
	}
	return nil
}

// Route returns the matching categories in roster declaration order. The
// result is never empty: when no specialist matches, the fallback categories
// are returned instead.
func (r *Roster) Route(d *dossier.Dossier, p applicant.Profile) []Category {
	haystack := routingText(d)

	var matched []Category
	for _, c := range r.Categories {
		if c.Fallback {
			continue
		}
		if c.matches(haystack, d.Seniority, p) {
			matched = append(matched, c)
		}
	}

	if len(matched) == 0 {
		for _, c := range r.Categories {
			if c.Fallback {
				matched = append(matched, c)
			}
		}
	}

	if r.logger != nil {
		names := make([]string, len(matched))
		for i, c := range matched {
			names[i] = c.Name
		}
		r.logger.Debug("dossier routed",
			zap.String("dossier_id", d.ID),
			zap.Strings("experts", names),
		)
	}

	return matched
}

func (c Category) matches(haystack, seniority string, p applicant.Profile) bool {
	if c.WhenSponsorship && p.NeedsSponsorship {
		return true
	}

	for _, kw := range c.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}

	if seniority != "" {
		lower := strings.ToLower(seniority)
		for _, s := range c.Seniorities {
			if strings.Contains(lower, strings.ToLower(strings.TrimSpace(s))) {
				return true
			}
		}
	}

	return false
}

func routingText(d *dossier.Dossier) string {
	var b strings.Builder
	b.WriteString(d.Role)
	b.WriteString(" ")
	b.WriteString(d.Company)
	for _, req := range d.Requirements {
		b.WriteString(" ")
		b.WriteString(req.Text)
	}
	return strings.ToLower(b.String())
}

// Find returns the named category.
func (r *Roster) Find(name string) (Category, bool) {
	for _, c := range r.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// DefaultRoster is the built-in council used when no roster file is
// configured.
func DefaultRoster(logger *zap.Logger) *Roster {
	return &Roster{
		logger: logger,
		Categories: []Category{
			{
				Name:        "hr_gatekeeper",
				Description: "screens for resume keywords and formal requirements",
				Keywords:    []string{"years of experience", "degree", "certification", "background check"},
			},
			{
				Name:        "tech_lead",
				Description: "judges depth of the technical stack match",
				Keywords:    []string{"go", "golang", "python", "kubernetes", "distributed", "backend", "microservice", "api"},
			},
			{
				Name:        "strategist",
				Description: "weighs career trajectory and transferable strengths",
				Keywords:    []string{"growth", "ownership", "cross-functional", "roadmap"},
			},
			{
				Name:            "visa_officer",
				Description:     "assesses sponsorship and relocation viability",
				Keywords:        []string{"visa", "sponsorship", "relocation", "work permit"},
				WhenSponsorship: true,
			},
			{
				Name:        "academic_reviewer",
				Description: "evaluates research and publication requirements",
				Keywords:    []string{"phd", "research", "publication", "paper", "ml", "machine learning"},
			},
			{
				Name:        "system_architect",
				Description: "evaluates large-scale design expectations",
				Keywords:    []string{"architecture", "scalability", "high availability", "throughput", "latency"},
			},
			{
				Name:        "leadership_scout",
				Description: "evaluates management and mentoring expectations",
				Keywords:    []string{"lead", "mentor", "management", "hiring", "team of"},
				Seniorities: []string{"staff", "principal", "lead", "manager", "head"},
			},
			{
				Name:        "startup_veteran",
				Description: "judges early-stage ambiguity and breadth demands",
				Keywords:    []string{"startup", "fast-paced", "wear many hats", "seed", "series a"},
			},
			{
				Name:        "generalist",
				Description: "assesses postings no specialist claims",
				Fallback:    true,
			},
		},
	}
}
