package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Window bounds which records a run considers: [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	const layout = "2006-01-02 15:04"
	return fmt.Sprintf("%s - %s", w.Start.UTC().Format(layout), w.End.UTC().Format(layout))
}

// IsZero reports whether the window was never resolved (backfill runs).
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Cursor persists the last window end between runs.
type Cursor interface {
	Get(ctx context.Context, pipeline string) (time.Time, bool, error)
	Set(ctx context.Context, pipeline string, end time.Time) error
}

// Resolver computes each run's window from the persisted cursor. No
// process-wide state: two resolvers over the same cursor row agree.
type Resolver struct {
	Cursor   Cursor
	Pipeline string

	// Granularity truncates window ends so re-resolving within the same
	// bucket is idempotent. Overlap reaches back past the cursor to absorb
	// late submissions; duplicate detection makes the re-read safe.
	// MaxLookback bounds the first run and stale cursors.
	Granularity time.Duration
	Overlap     time.Duration
	MaxLookback time.Duration
}

// Resolve computes the window covering everything since the last run.
func (r *Resolver) Resolve(ctx context.Context, now time.Time) (Window, error) {
	end := now.UTC().Truncate(r.Granularity)
	floor := end.Add(-r.MaxLookback)

	last, found, err := r.Cursor.Get(ctx, r.Pipeline)
	if err != nil {
		return Window{}, fmt.Errorf("reading cursor: %w", err)
	}

	start := floor
	if found {
		start = last.UTC().Add(-r.Overlap)
		if start.Before(floor) {
			start = floor
		}
	}
	// A cursor ahead of the current bucket (clock went backwards) yields
	// an empty window rather than a negative one.
	if start.After(end) {
		start = end
	}

	return Window{Start: start, End: end}, nil
}

// Advance persists w.End as the cursor for the next run. Called once the
// export succeeded, regardless of per-record outcomes: delivery is
// at-least-once and the overlap plus duplicate detection cover retries.
func (r *Resolver) Advance(ctx context.Context, w Window) error {
	if err := r.Cursor.Set(ctx, r.Pipeline, w.End); err != nil {
		return fmt.Errorf("advancing cursor: %w", err)
	}
	return nil
}
