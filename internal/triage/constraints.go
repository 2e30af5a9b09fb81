package triage

import (
	"fmt"
	"strings"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/toolgw"
)

// DefaultConstraints returns the gate's standard check order: work
// authorization first, then explicit deal-breakers, then the minimum
// qualification bar.
func DefaultConstraints() []Constraint {
	return []Constraint{
		workAuthorization{},
		dealBreakers{},
		minimumQualification{},
	}
}

// workAuthorization rejects postings that cannot support the applicant's visa
// situation. It fails closed: when the applicant needs sponsorship and the
// posting's stance is unknown, the dossier is rejected rather than passed on
// hope.
type workAuthorization struct{}

func (workAuthorization) Name() string     { return "work_authorization" }
func (workAuthorization) FailClosed() bool { return true }

func (workAuthorization) Evaluate(d *dossier.Dossier, p applicant.Profile, facts toolgw.Facts) (Result, error) {
	if !p.NeedsSponsorship {
		return Result{Outcome: Pass}, nil
	}

	fact := facts.Get(toolgw.ToolSponsorship)
	if !fact.Known {
		return Result{
			Outcome: Unknown,
			Reason:  "sponsorship support unknown and applicant requires it",
		}, nil
	}

	if fact.Value == toolgw.SponsorshipUnlikely {
		return Result{
			Outcome: Fail,
			Reason:  "posting does not support visa sponsorship",
		}, nil
	}

	return Result{Outcome: Pass}, nil
}

// dealBreakers rejects a dossier that matches any of the applicant's declared
// no-go locations, stacks or seniority levels. A dossier missing a field that
// a declared deal-breaker needs is rejected naming that field.
type dealBreakers struct{}

func (dealBreakers) Name() string     { return "deal_breakers" }
func (dealBreakers) FailClosed() bool { return false }

func (dealBreakers) Evaluate(d *dossier.Dossier, p applicant.Profile, facts toolgw.Facts) (Result, error) {
	db := p.DealBreakers
	if !db.Declared() {
		return Result{Outcome: Pass}, nil
	}

	if len(db.Locations) > 0 {
		if d.Missing(dossier.FieldLocation) {
			return Result{
				Outcome: Fail,
				Reason:  fmt.Sprintf("cannot check declared location deal-breakers: dossier is missing field %q", dossier.FieldLocation),
			}, nil
		}
		if hit, ok := containsAny(d.Location, db.Locations); ok {
			return Result{
				Outcome: Fail,
				Reason:  fmt.Sprintf("location %q matches deal-breaker %q", d.Location, hit),
			}, nil
		}
	}

	if len(db.Seniorities) > 0 {
		if d.Missing(dossier.FieldSeniority) {
			return Result{
				Outcome: Fail,
				Reason:  fmt.Sprintf("cannot check declared seniority deal-breakers: dossier is missing field %q", dossier.FieldSeniority),
			}, nil
		}
		if hit, ok := containsAny(d.Seniority, db.Seniorities); ok {
			return Result{
				Outcome: Fail,
				Reason:  fmt.Sprintf("seniority %q matches deal-breaker %q", d.Seniority, hit),
			}, nil
		}
	}

	if len(db.Stacks) > 0 {
		var haystack strings.Builder
		haystack.WriteString(d.Role)
		for _, req := range d.Requirements {
			haystack.WriteString(" ")
			haystack.WriteString(req.Text)
		}
		if hit, ok := containsAny(haystack.String(), db.Stacks); ok {
			return Result{
				Outcome: Fail,
				Reason:  fmt.Sprintf("posting requires deal-breaker stack %q", hit),
			}, nil
		}
	}

	return Result{Outcome: Pass}, nil
}

// minimumQualification requires the applicant to cover at least half of the
// posting's hard requirements.
type minimumQualification struct{}

func (minimumQualification) Name() string     { return "minimum_qualification" }
func (minimumQualification) FailClosed() bool { return false }

func (minimumQualification) Evaluate(d *dossier.Dossier, p applicant.Profile, facts toolgw.Facts) (Result, error) {
	if d.Missing(dossier.FieldRequirements) {
		return Result{
			Outcome: Fail,
			Reason:  fmt.Sprintf("cannot check qualifications: dossier is missing field %q", dossier.FieldRequirements),
		}, nil
	}

	hard := d.HardRequirements()
	if len(hard) == 0 {
		return Result{Outcome: Pass}, nil
	}

	covered := 0
	for _, req := range hard {
		if p.HasSkill(req.Text) {
			covered++
		}
	}

	if covered*2 < len(hard) {
		return Result{
			Outcome: Fail,
			Reason:  fmt.Sprintf("covers only %d of %d hard requirements", covered, len(hard)),
		}, nil
	}

	return Result{Outcome: Pass}, nil
}

// containsAny reports whether text contains any of the needles,
// case-insensitively, returning the first hit.
func containsAny(text string, needles []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, n := range needles {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(n)) {
			return n, true
		}
	}
	return "", false
}
