// Package memory is the durable store behind the pipeline: applicant profile
// fragments and the append-only application-history ledger, both served with
// deterministic similarity search. The scoring pipeline only reads; writes
// come from the separate ingestion path and must not run during a scoring run.
package memory

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Application outcomes. The zero history record is pending; every later state
// arrives as an appended status transition.
const (
	OutcomePending   = "pending"
	OutcomeRejected  = "rejected"
	OutcomeInterview = "interview"
	OutcomeOffer     = "offer"
)

// Fragment is one piece of applicant evidence with a retrieval score.
type Fragment struct {
	ID      int64
	Content string
	Tags    []string
	Score   float64
}

// HistoryRecord is one past application with its current (latest-wins) outcome.
type HistoryRecord struct {
	ID            string
	Company       string
	Role          string
	Posting       string
	ResumeVersion string
	Outcome       string
	Reason        string
	CreatedAt     time.Time
	Score         float64
}

// Store wraps the SQLite database holding fragments and history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenEphemeral opens an in-memory store, used by tests and dry runs.
func OpenEphemeral() (*Store, error) {
	return Open(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IngestFragment appends one profile fragment. Owned by the ingestion
// collaborator; the scoring pipeline never calls it mid-run.
func (s *Store) IngestFragment(ctx context.Context, content string, tags []string) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, fmt.Errorf("fragment content must not be empty")
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO fragments (content, tags) VALUES (?, ?)",
		content, strings.Join(tags, ","),
	)
	if err != nil {
		return 0, fmt.Errorf("insert fragment: %w", err)
	}

	return res.LastInsertId()
}

// AppendHistory appends a new application record in the pending state and
// returns its identifier. Existing records are never rewritten.
func (s *Store) AppendHistory(ctx context.Context, rec HistoryRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin history append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO history (id, company, role, posting, resume_version) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Company, rec.Role, rec.Posting, rec.ResumeVersion,
	)
	if err != nil {
		return "", fmt.Errorf("insert history record: %w", err)
	}

	outcome := rec.Outcome
	if outcome == "" {
		outcome = OutcomePending
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO history_status (record_id, outcome, reason) VALUES (?, ?, ?)",
		rec.ID, outcome, rec.Reason,
	)
	if err != nil {
		return "", fmt.Errorf("insert history status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit history append: %w", err)
	}

	return rec.ID, nil
}

// AppendOutcome appends a status transition for an existing record.
func (s *Store) AppendOutcome(ctx context.Context, recordID, outcome, reason string) error {
	switch outcome {
	case OutcomePending, OutcomeRejected, OutcomeInterview, OutcomeOffer:
	default:
		return fmt.Errorf("invalid outcome %q", outcome)
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM history WHERE id = ?", recordID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check history record: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("history record %q not found", recordID)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO history_status (record_id, outcome, reason) VALUES (?, ?, ?)",
		recordID, outcome, reason,
	)
	if err != nil {
		return fmt.Errorf("append outcome: %w", err)
	}

	return nil
}

// CurrentOutcome reconstructs the record's current state via latest-wins over
// its status transitions.
func (s *Store) CurrentOutcome(ctx context.Context, recordID string) (outcome, reason string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT outcome, reason FROM history_status
		 WHERE record_id = ? ORDER BY id DESC LIMIT 1`,
		recordID,
	).Scan(&outcome, &reason)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("history record %q not found", recordID)
	}
	if err != nil {
		return "", "", fmt.Errorf("current outcome: %w", err)
	}

	return outcome, reason, nil
}
