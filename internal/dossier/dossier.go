// Package dossier defines the canonical structured form of one job posting.
// A dossier is immutable once created: its identifier is the content hash of
// the raw posting, so re-ingesting unchanged content yields the same dossier.
package dossier

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Requirement tags. Hard requirements participate in triage and gap analysis;
// soft requirements only influence match scoring.
const (
	TagHard = "hard"
	TagSoft = "soft"
)

// Canonical field names, referenced by triage constraints and reject reasons.
const (
	FieldRole         = "role"
	FieldCompany      = "company"
	FieldLocation     = "location"
	FieldSeniority    = "seniority"
	FieldRequirements = "requirements"
)

// Requirement is a single tagged requirement extracted from a posting.
type Requirement struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

// Provenance points back at the raw source of a dossier.
type Provenance struct {
	Source     string    `json:"source"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Dossier is the canonical form of one posting.
type Dossier struct {
	ID           string        `json:"id"`
	Role         string        `json:"role"`
	Company      string        `json:"company"`
	Location     string        `json:"location"`
	Seniority    string        `json:"seniority"`
	Requirements []Requirement `json:"requirements"`
	Provenance   Provenance    `json:"provenance"`

	// Incomplete marks a dossier whose required fields could not all be
	// extracted. Triage treats the missing fields conservatively.
	Incomplete    bool     `json:"incomplete,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// HashContent derives the stable dossier identifier from raw posting content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum[:])
}

// Missing reports whether the named canonical field was not extracted.
func (d *Dossier) Missing(field string) bool {
	for _, f := range d.MissingFields {
		if f == field {
			return true
		}
	}
	return false
}

// HardRequirements returns the hard-tagged subset in declaration order.
func (d *Dossier) HardRequirements() []Requirement {
	var hard []Requirement
	for _, r := range d.Requirements {
		if r.Tag == TagHard {
			hard = append(hard, r)
		}
	}
	return hard
}

// Dossiers is an ordered collection of dossiers for one run.
type Dossiers struct {
	Items []*Dossier
}

func (d *Dossiers) Len() int {
	return len(d.Items)
}

func (d *Dossiers) FindByID(id string) *Dossier {
	for _, item := range d.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// ReportByCompany groups postings by company for the interactive report view.
func (d *Dossiers) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range d.Items {
		key := item.Company
		if key == "" {
			key = "(unknown company)"
		}
		report[key] = append(report[key], map[string]string{
			"role":      item.Role,
			"location":  item.Location,
			"seniority": item.Seniority,
			"source":    item.Provenance.Source,
		})
	}
	return report
}

func (d *Dossiers) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "dossiers_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return "", err
	}
	return file.Name(), nil
}
