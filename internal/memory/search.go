package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// SearchFragments returns the top-k profile fragments for a query, ordered by
// lexical overlap score descending, then fragment id ascending. The scoring is
// deterministic on purpose: reruns over an unchanged store produce identical
// rankings.
func (s *Store) SearchFragments(ctx context.Context, query string, k int) ([]Fragment, error) {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, tags FROM fragments ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	var results []Fragment
	for rows.Next() {
		var f Fragment
		var tags string
		if err := rows.Scan(&f.ID, &f.Content, &tags); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		if tags != "" {
			f.Tags = strings.Split(tags, ",")
		}

		f.Score = overlapScore(terms, tokenize(f.Content+" "+tags))
		if f.Score > 0 {
			results = append(results, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fragments: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SearchHistory returns the top-k past applications similar to the query,
// each carrying its current latest-wins outcome. Ordering matches
// SearchFragments: score descending, record id ascending.
func (s *Store) SearchHistory(ctx context.Context, query string, k int) ([]HistoryRecord, error) {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.company, h.role, h.posting, h.resume_version, h.created_at,
		       st.outcome, st.reason
		FROM history h
		JOIN history_status st ON st.record_id = h.id
		WHERE st.id = (SELECT MAX(id) FROM history_status WHERE record_id = h.id)
		ORDER BY h.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var results []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var createdAt string
		err := rows.Scan(&rec.ID, &rec.Company, &rec.Role, &rec.Posting,
			&rec.ResumeVersion, &createdAt, &rec.Outcome, &rec.Reason)
		if err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		rec.CreatedAt = parseSQLiteTime(createdAt)

		rec.Score = overlapScore(terms, tokenize(rec.Company+" "+rec.Role+" "+rec.Posting))
		if rec.Score > 0 {
			results = append(results, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping one-rune
// tokens, and deduplicates while preserving first-seen order.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(fields))
	var tokens []string
	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

// overlapScore is the fraction of query terms present in the candidate token
// set. Bounded [0, 1]; fully deterministic.
func overlapScore(queryTerms, candidate []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	set := make(map[string]bool, len(candidate))
	for _, tok := range candidate {
		set[tok] = true
	}

	matched := 0
	for _, term := range queryTerms {
		if set[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

func parseSQLiteTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
