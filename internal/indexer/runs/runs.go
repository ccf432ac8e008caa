// Package runs records indexing runs in PostgreSQL and describes the event
// announcing a finished run.
package runs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gerdreiss/seroost/pkg/postgres"
)

// Schema creates the registry tables. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS index_runs (
    id          UUID PRIMARY KEY,
    corpus_root TEXT NOT NULL,
    index_path  TEXT NOT NULL,
    documents   INTEGER NOT NULL,
    terms       INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    fingerprint TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS index_run_failures (
    run_id   UUID NOT NULL REFERENCES index_runs(id) ON DELETE CASCADE,
    document TEXT NOT NULL,
    error    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS index_runs_finished_at ON index_runs (finished_at DESC);
`

// Run is one completed indexing run.
type Run struct {
	ID          uuid.UUID `json:"id"`
	CorpusRoot  string    `json:"corpus_root"`
	IndexPath   string    `json:"index_path"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Fingerprint string    `json:"fingerprint"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Failures    []Failure `json:"failures,omitempty"`
}

// Failure is a document skipped during a run.
type Failure struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

// IndexCompleteEvent is published after a run has saved its index file.
type IndexCompleteEvent struct {
	RunID       string    `json:"run_id"`
	IndexPath   string    `json:"index_path"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Fingerprint string    `json:"fingerprint"`
	CompletedAt time.Time `json:"completed_at"`
}

// Event returns the completion event for r.
func (r Run) Event() IndexCompleteEvent {
	return IndexCompleteEvent{
		RunID:       r.ID.String(),
		IndexPath:   r.IndexPath,
		Documents:   r.Documents,
		Terms:       r.Terms,
		Fingerprint: r.Fingerprint,
		CompletedAt: r.FinishedAt,
	}
}

// Store persists runs.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "run-registry"),
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrating run registry: %w", err)
	}
	return nil
}

// Record stores run and its failures in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO index_runs
			   (id, corpus_root, index_path, documents, terms, failed, fingerprint, started_at, finished_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, run.CorpusRoot, run.IndexPath, run.Documents, run.Terms,
			len(run.Failures), run.Fingerprint, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		if len(run.Failures) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO index_run_failures (run_id, document, error) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("preparing failure insert: %w", err)
		}
		defer stmt.Close()
		for _, f := range run.Failures {
			if _, err := stmt.ExecContext(ctx, run.ID, f.Document, f.Error); err != nil {
				return fmt.Errorf("inserting failure for %s: %w", f.Document, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("run recorded", "run_id", run.ID, "documents", run.Documents, "failed", len(run.Failures))
	return nil
}

// Summary is a run as listed by Recent. Failures are counted, not loaded.
type Summary struct {
	Run
	Failed int `json:"failed"`
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, corpus_root, index_path, documents, terms, failed, fingerprint, started_at, finished_at
		   FROM index_runs
		  ORDER BY finished_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var r Summary
		if err := rows.Scan(&r.ID, &r.CorpusRoot, &r.IndexPath, &r.Documents, &r.Terms,
			&r.Failed, &r.Fingerprint, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
