package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CursorStore persists the last resolved window end per pipeline identity,
// replacing in-process "last run" state so restarts resume correctly.
type CursorStore struct{ db *sql.DB }

// NewCursorStore creates a Postgres-backed cursor store.
func NewCursorStore(db *sql.DB) *CursorStore { return &CursorStore{db: db} }

// Get returns the stored window end for a pipeline, with found=false on
// first run.
func (s *CursorStore) Get(ctx context.Context, pipeline string) (time.Time, bool, error) {
	var end time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT window_end FROM run_cursor WHERE pipeline = $1`,
		pipeline,
	).Scan(&end)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get cursor: %w", err)
	}
	return end.UTC(), true, nil
}

// Set upserts the window end for a pipeline in a single statement.
func (s *CursorStore) Set(ctx context.Context, pipeline string, end time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_cursor (pipeline, window_end, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (pipeline) DO UPDATE SET window_end = $2, updated_at = NOW()
	`, pipeline, end.UTC())
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
