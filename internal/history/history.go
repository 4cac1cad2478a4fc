// Package history persists an audit trail of executed batches to a local
// SQLite database. It backs the server_manager tool's status and history
// actions; losing it never affects batch execution.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("history: not found")

// Record is one executed batch.
type Record struct {
	BatchID    string          `json:"batch_id"`
	Path       string          `json:"idf_path"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	Operations int             `json:"operations"`
	Report     json.RawMessage `json:"report,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Store is the SQLite-backed audit store.
type Store struct {
	db *sql.DB
}

// timeFormat is RFC 3339 with fixed-width nanoseconds. executed_at is
// ordered lexicographically, so the fractional part must never be
// trimmed the way RFC3339Nano trims it.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id    TEXT PRIMARY KEY,
	idf_path    TEXT NOT NULL,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL,
	operations  INTEGER NOT NULL,
	report      TEXT NOT NULL,
	executed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_executed_at ON batches (executed_at DESC);
`

// Open opens (creating if needed) the store at path. Use ":memory:" for
// an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// SQLite handles one writer; the store is low-traffic.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one batch record.
func (s *Store) Record(ctx context.Context, rec Record) error {
	report := rec.Report
	if report == nil {
		report = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (batch_id, idf_path, mode, status, operations, report, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID, rec.Path, rec.Mode, rec.Status, rec.Operations, string(report),
		rec.ExecutedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("history: record batch %s: %w", rec.BatchID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, idf_path, mode, status, operations, report, executed_at
		 FROM batches ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var report, executedAt string
		if err := rows.Scan(&rec.BatchID, &rec.Path, &rec.Mode, &rec.Status,
			&rec.Operations, &report, &executedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		rec.Report = json.RawMessage(report)
		rec.ExecutedAt, _ = time.Parse(time.RFC3339Nano, executedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one record by batch id.
func (s *Store) Get(ctx context.Context, batchID string) (Record, error) {
	var rec Record
	var report, executedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_id, idf_path, mode, status, operations, report, executed_at
		 FROM batches WHERE batch_id = ?`, batchID).
		Scan(&rec.BatchID, &rec.Path, &rec.Mode, &rec.Status, &rec.Operations, &report, &executedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("history: get %s: %w", batchID, err)
	}
	rec.Report = json.RawMessage(report)
	rec.ExecutedAt, _ = time.Parse(time.RFC3339Nano, executedAt)
	return rec, nil
}

// Count returns the total number of recorded batches.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}
