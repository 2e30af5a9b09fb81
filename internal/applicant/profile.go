// Package applicant holds the applicant profile snapshot consumed read-only
// by a scoring run. The profile is declared in configuration; skill evidence
// fragments live in the memory store.
package applicant

import "strings"

// Profile is the applicant's hard facts and declared deal-breakers.
type Profile struct {
	Name             string       `mapstructure:"name"`
	NeedsSponsorship bool         `mapstructure:"needs-sponsorship"`
	YearsExperience  int          `mapstructure:"years-experience"`
	Degrees          []string     `mapstructure:"degrees"`
	Skills           []string     `mapstructure:"skills"`
	DealBreakers     DealBreakers `mapstructure:"deal-breakers"`
}

// DealBreakers lists explicit reject conditions. A posting matching any entry
// fails triage outright.
type DealBreakers struct {
	Locations   []string `mapstructure:"locations"`
	Stacks      []string `mapstructure:"stacks"`
	Seniorities []string `mapstructure:"seniorities"`
}

// HasSkill reports whether any declared skill token appears in the given text.
// Matching is case-insensitive substring containment in both directions so
// that "Go" matches "Golang" and "distributed systems" matches "distributed".
func (p Profile) HasSkill(text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return false
	}

	for _, skill := range p.Skills {
		s := strings.ToLower(strings.TrimSpace(skill))
		if s == "" {
			continue
		}
		if strings.Contains(needle, s) || strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// Declared reports whether the profile declares any deal-breakers at all.
func (d DealBreakers) Declared() bool {
	return len(d.Locations)+len(d.Stacks)+len(d.Seniorities) > 0
}
