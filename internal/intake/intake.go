// Package intake turns raw job postings into canonical dossiers. The dossier
// id is the content hash, so re-ingesting an unchanged posting yields the
// same dossier and reruns stay idempotent. Content with nothing extractable
// is quarantined with ErrMalformedInput; partially extractable content
// proceeds marked incomplete.
package intake

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dossier"
)

// ErrMalformedInput marks content no field could be extracted from. Such
// postings are quarantined, never silently dropped.
var ErrMalformedInput = errors.New("malformed posting input")

// Source is one raw posting with its origin label.
type Source struct {
	Name    string
	Content string
}

// Normalizer extracts dossier fields from raw posting text.
type Normalizer struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger, now: time.Now}
}

var fieldLabels = map[string]string{
	"role":      dossier.FieldRole,
	"title":     dossier.FieldRole,
	"position":  dossier.FieldRole,
	"company":   dossier.FieldCompany,
	"employer":  dossier.FieldCompany,
	"location":  dossier.FieldLocation,
	"seniority": dossier.FieldSeniority,
	"level":     dossier.FieldSeniority,
}

var softMarkers = []string{"nice to have", "preferred", "bonus", "a plus", "desirable"}

// Normalize parses one posting. The returned dossier id is stable for the
// content; MissingFields lists the canonical fields that could not be found.
func (n *Normalizer) Normalize(src Source) (*dossier.Dossier, error) {
	content := strings.TrimSpace(src.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformedInput, src.Name)
	}

	d := &dossier.Dossier{
		ID: dossier.HashContent(content),
		Provenance: dossier.Provenance{
			Source:     src.Name,
			IngestedAt: n.now(),
		},
	}

	fields := map[string]string{}
	inRequirements := false
	softSection := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if bullet, ok := stripBullet(line); ok {
			if inRequirements {
				n.appendRequirement(d, bullet, softSection)
			}
			continue
		}

		if label, value, ok := splitLabel(line); ok {
			if field, known := fieldLabels[label]; known {
				inRequirements = false
				if fields[field] == "" && value != "" {
					fields[field] = value
				}
				continue
			}
			if isRequirementsHeader(label) {
				inRequirements = true
				softSection = containsAnyMarker(label)
				// A header with inline content carries its first bullet.
				if value != "" {
					n.appendRequirement(d, value, softSection)
				}
				continue
			}
			inRequirements = false
			continue
		}

		if inRequirements {
			n.appendRequirement(d, line, softSection)
		}
	}

	d.Role = fields[dossier.FieldRole]
	d.Company = fields[dossier.FieldCompany]
	d.Location = fields[dossier.FieldLocation]
	d.Seniority = fields[dossier.FieldSeniority]

	if d.Seniority == "" {
		d.Seniority = inferSeniority(d.Role)
	}

	if d.Role == "" && d.Company == "" && d.Location == "" &&
		d.Seniority == "" && len(d.Requirements) == 0 {
		return nil, fmt.Errorf("%w: no fields extractable from %s", ErrMalformedInput, src.Name)
	}

	for _, field := range []string{
		dossier.FieldRole, dossier.FieldCompany, dossier.FieldLocation, dossier.FieldSeniority,
	} {
		if fields[field] == "" && !(field == dossier.FieldSeniority && d.Seniority != "") {
			d.MissingFields = append(d.MissingFields, field)
		}
	}
	if len(d.Requirements) == 0 {
		d.MissingFields = append(d.MissingFields, dossier.FieldRequirements)
	}
	d.Incomplete = len(d.MissingFields) > 0

	if d.Incomplete {
		n.logger.Debug("dossier normalized incomplete",
			zap.String("dossier_id", d.ID),
			zap.String("source", src.Name),
			zap.Strings("missing_fields", d.MissingFields),
		)
	}

	return d, nil
}

// NormalizeBatch processes all sources, deduplicating by content hash. The
// second return value holds the quarantined sources with their errors.
func (n *Normalizer) NormalizeBatch(sources []Source) (*dossier.Dossiers, []Quarantined) {
	batch := &dossier.Dossiers{}
	var quarantined []Quarantined

	seen := map[string]bool{}
	for _, src := range sources {
		d, err := n.Normalize(src)
		if err != nil {
			n.logger.Warn("posting quarantined",
				zap.String("source", src.Name),
				zap.Error(err),
			)
			quarantined = append(quarantined, Quarantined{Source: src.Name, Err: err})
			continue
		}
		if seen[d.ID] {
			n.logger.Debug("duplicate posting skipped",
				zap.String("dossier_id", d.ID),
				zap.String("source", src.Name),
			)
			continue
		}
		seen[d.ID] = true
		batch.Items = append(batch.Items, d)
	}

	return batch, quarantined
}

// Quarantined is one source that failed normalization.
type Quarantined struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (q Quarantined) Reason() string {
	if q.Err == nil {
		return ""
	}
	return q.Err.Error()
}

func (n *Normalizer) appendRequirement(d *dossier.Dossier, text string, soft bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	tag := dossier.TagHard
	if soft || containsAnyMarker(strings.ToLower(text)) {
		tag = dossier.TagSoft
	}

	d.Requirements = append(d.Requirements, dossier.Requirement{Text: text, Tag: tag})
}

func splitLabel(line string) (label, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}

	label = strings.ToLower(strings.TrimSpace(strings.TrimLeft(line[:idx], "-*# ")))
	if label == "" || strings.ContainsAny(label, ".!?") || len(label) > 40 {
		return "", "", false
	}

	return label, strings.TrimSpace(line[idx+1:]), true
}

func isRequirementsHeader(label string) bool {
	for _, marker := range []string{"requirement", "qualification", "what you", "must have", "nice to have", "preferred"} {
		if strings.Contains(label, marker) {
			return true
		}
	}
	return false
}

func containsAnyMarker(text string) bool {
	for _, marker := range softMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func stripBullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

func inferSeniority(role string) string {
	lower := strings.ToLower(role)
	for _, level := range []string{"principal", "staff", "senior", "junior", "lead", "head"} {
		if strings.Contains(lower, level) {
			return level
		}
	}
	return ""
}
