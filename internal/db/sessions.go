package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRow is the persisted metadata of one upload session. Record
// contents stay in memory; only the descriptive header survives a
// restart.
type SessionRow struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	LogType     string    `json:"log_type"`
	RowCount    int       `json:"row_count"`
	SkippedRows int       `json:"skipped_rows"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SessionStore persists session metadata rows.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a session store backed by the database.
func NewSessionStore(d *DB) *SessionStore {
	return &SessionStore{db: d}
}

// Put inserts or replaces a session row.
func (s *SessionStore) Put(ctx context.Context, row SessionRow) error {
	now := time.Now().UTC().Format(time.DateTime)
	created := now
	if !row.CreatedAt.IsZero() {
		created = row.CreatedAt.UTC().Format(time.DateTime)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, filename, log_type, row_count, skipped_rows, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			log_type = excluded.log_type,
			row_count = excluded.row_count,
			skipped_rows = excluded.skipped_rows,
			updated_at = excluded.updated_at`,
		row.ID, row.Filename, row.LogType, row.RowCount, row.SkippedRows, created, now,
	)
	if err != nil {
		return fmt.Errorf("storing session %s: %w", row.ID, err)
	}
	return nil
}

// Touch updates the row counters after a merge and bumps updated_at.
func (s *SessionStore) Touch(ctx context.Context, id string, rowCount, skippedRows int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET row_count = ?, skipped_rows = ?, updated_at = ? WHERE id = ?",
		rowCount, skippedRows, time.Now().UTC().Format(time.DateTime), id,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	return nil
}

// Delete removes a session row. Deleting an unknown id is not an
// error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Clear removes every session row. Records only ever live in process
// memory, so rows left over from a previous run describe sessions
// that no longer exist.
func (s *SessionStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions")
	if err != nil {
		return 0, fmt.Errorf("clearing sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Get returns one session row, or nil when the id is unknown.
func (s *SessionStore) Get(ctx context.Context, id string) (*SessionRow, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, filename, log_type, row_count, skipped_rows, created_at, updated_at FROM sessions WHERE id = ?",
		id,
	)
	sr, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return sr, nil
}

// List returns all session rows, newest first.
func (s *SessionStore) List(ctx context.Context) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, log_type, row_count, skipped_rows, created_at, updated_at FROM sessions ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		sr, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*SessionRow, error) {
	var (
		sr               SessionRow
		created, updated string
	)
	err := sc.Scan(&sr.ID, &sr.Filename, &sr.LogType, &sr.RowCount, &sr.SkippedRows, &created, &updated)
	if err != nil {
		return nil, err
	}
	sr.CreatedAt = parseStoredTime(created)
	sr.UpdatedAt = parseStoredTime(updated)
	return &sr, nil
}

func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
