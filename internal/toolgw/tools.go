package toolgw

import (
	"context"
	"fmt"
	"strings"
)

// Built-in tool names.
const (
	ToolSalary       = "salary"
	ToolPublications = "publications"
	ToolSponsorship  = "sponsorship"
)

// Sponsorship heuristic answers.
const (
	SponsorshipLikely   = "likely"
	SponsorshipUnlikely = "unlikely"
)

// SalaryTool estimates a market salary range from a base-rate table keyed by
// role keywords. It is a local heuristic stand-in for an external market
// lookup; network-backed tools implement the same Tool interface.
type SalaryTool struct {
	rates []salaryRate
}

type salaryRate struct {
	keyword string
	low     int
	high    int
}

func NewSalaryTool() *SalaryTool {
	return &SalaryTool{rates: []salaryRate{
		{"research scientist", 180000, 250000},
		{"machine learning", 160000, 230000},
		{"staff engineer", 170000, 240000},
		{"software engineer", 140000, 200000},
		{"data scientist", 130000, 190000},
		{"postdoc", 60000, 85000},
	}}
}

func (t *SalaryTool) Name() string { return ToolSalary }

func (t *SalaryTool) Lookup(_ context.Context, query string) (string, error) {
	role := strings.ToLower(query)
	for _, rate := range t.rates {
		if strings.Contains(role, rate.keyword) {
			return fmt.Sprintf("%d-%d USD/year", rate.low, rate.high), nil
		}
	}
	return "", fmt.Errorf("no salary baseline for %q", query)
}

// PublicationsTool reports recent research activity for known companies. Like
// SalaryTool it is a local table; a live arXiv search can replace it behind
// the same interface.
type PublicationsTool struct {
	activity map[string]string
}

func NewPublicationsTool() *PublicationsTool {
	return &PublicationsTool{activity: map[string]string{
		"google": "active: frequent ML publications in the last 12 months",
		"openai": "active: frequent ML publications in the last 12 months",
		"meta":   "active: frequent ML publications in the last 12 months",
		"nvidia": "active: graphics and ML publications in the last 12 months",
	}}
}

func (t *PublicationsTool) Name() string { return ToolPublications }

func (t *PublicationsTool) Lookup(_ context.Context, query string) (string, error) {
	company := strings.ToLower(strings.TrimSpace(query))
	for key, summary := range t.activity {
		if strings.Contains(company, key) {
			return summary, nil
		}
	}
	return "", fmt.Errorf("no publication record for %q", query)
}

// SponsorshipTool scans posting text for visa-sponsorship signals. It answers
// "likely" or "unlikely" only on explicit wording and fails otherwise so the
// gateway records the fact as unknown.
type SponsorshipTool struct{}

func NewSponsorshipTool() *SponsorshipTool { return &SponsorshipTool{} }

func (t *SponsorshipTool) Name() string { return ToolSponsorship }

var (
	sponsorshipPositive = []string{
		"visa sponsorship available",
		"we sponsor",
		"sponsorship provided",
		"work permit support",
		"relocation and visa",
	}
	sponsorshipNegative = []string{
		"no visa sponsorship",
		"unable to sponsor",
		"cannot sponsor",
		"must be authorized to work",
		"without sponsorship",
	}
)

func (t *SponsorshipTool) Lookup(_ context.Context, query string) (string, error) {
	text := strings.ToLower(query)

	// Negative wording wins: "must be authorized to work without sponsorship"
	// contains signals from both lists.
	for _, marker := range sponsorshipNegative {
		if strings.Contains(text, marker) {
			return SponsorshipUnlikely, nil
		}
	}
	for _, marker := range sponsorshipPositive {
		if strings.Contains(text, marker) {
			return SponsorshipLikely, nil
		}
	}

	return "", fmt.Errorf("no sponsorship wording found")
}

// DefaultTools returns the built-in grounding tool set.
func DefaultTools() []Tool {
	return []Tool{NewSalaryTool(), NewPublicationsTool(), NewSponsorshipTool()}
}
