package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Failure is one persisted non-success outcome: the source row as JSON
// plus the condition that stopped it. Append-only; rows are never updated.
type Failure struct {
	ID        string          `json:"id"`
	SID       string          `json:"sid"`
	Condition string          `json:"condition"`
	Message   string          `json:"message"`
	RawRecord json.RawMessage `json:"raw_record,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// FailureStore reads and appends the failure log.
type FailureStore struct{ db *sql.DB }

// NewFailureStore creates a Postgres-backed failure store.
func NewFailureStore(db *sql.DB) *FailureStore { return &FailureStore{db: db} }

// Write appends one failure. A single INSERT so an interrupt can never
// leave a half-written row behind.
func (s *FailureStore) Write(ctx context.Context, f *Failure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO va_failures (id, sid, condition, message, raw_record, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, f.ID, f.SID, f.Condition, f.Message, f.RawRecord)
	if err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}

// Recent returns the newest failures, newest first.
func (s *FailureStore) Recent(ctx context.Context, limit int) ([]Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sid, condition, message, raw_record, created_at
		FROM va_failures
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.ID, &f.SID, &f.Condition, &f.Message, &f.RawRecord, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountByCondition tallies the whole log per condition tag.
func (s *FailureStore) CountByCondition(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition, COUNT(*)
		FROM va_failures
		GROUP BY condition
	`)
	if err != nil {
		return nil, fmt.Errorf("count failures: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var cond string
		var n int
		if err := rows.Scan(&cond, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[cond] = n
	}
	return out, rows.Err()
}
