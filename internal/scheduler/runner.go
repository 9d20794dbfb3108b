// Package scheduler drives recurring pipeline runs.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openvital/smartva-bridge/internal/pipeline"
	"github.com/openvital/smartva-bridge/internal/pkg/logger"
)

var log = logger.Component("scheduler")

// Trigger runs one import pass. Satisfied by *pipeline.Pipeline.
type Trigger interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (pipeline.Summary, error)
}

// Status is a point-in-time view of the runner for the ops API.
type Status struct {
	Running     bool              `json:"running"`
	InFlight    bool              `json:"in_flight"`
	LastRunAt   time.Time         `json:"last_run_at"`
	NextRunAt   time.Time         `json:"next_run_at"`
	LastSummary *pipeline.Summary `json:"last_summary,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
	TotalRuns   int64             `json:"total_runs"`
	TotalErrors int64             `json:"total_errors"`
}

// Runner executes scheduled pipeline runs: one immediately on Start, then
// one per interval. Runs never overlap; a tick that lands while a run is
// still going is skipped, not queued.
type Runner struct {
	trigger  Trigger
	interval time.Duration

	// Stats
	totalRuns   int64
	totalErrors int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	inRun   int32

	lastRunAt   time.Time
	nextRunAt   time.Time
	lastSummary *pipeline.Summary
	lastError   error
}

// NewRunner creates a runner. A zero interval defaults to 3 hours.
func NewRunner(trigger Trigger, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	return &Runner{trigger: trigger, interval: interval}
}

// Start launches the schedule loop. The first run begins immediately.
func (r *Runner) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	log.Info("schedule starting", "interval", r.interval.String())

	r.wg.Add(1)
	go r.loop()
}

// Stop cancels the loop and any in-flight run, then waits for both.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	log.Info("schedule stopped",
		"total_runs", atomic.LoadInt64(&r.totalRuns),
		"total_errors", atomic.LoadInt64(&r.totalErrors))
}

// IsRunning reports whether the schedule loop is active.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Status returns a snapshot for the ops API.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{
		Running:     r.running,
		InFlight:    atomic.LoadInt32(&r.inRun) == 1,
		LastRunAt:   r.lastRunAt,
		NextRunAt:   r.nextRunAt,
		TotalRuns:   atomic.LoadInt64(&r.totalRuns),
		TotalErrors: atomic.LoadInt64(&r.totalErrors),
	}
	if r.lastSummary != nil {
		s := *r.lastSummary
		st.LastSummary = &s
	}
	if r.lastError != nil {
		st.LastError = r.lastError.Error()
	}
	return st
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.dispatch()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.dispatch()
		}
	}
}

// dispatch starts one run unless the previous one is still going.
func (r *Runner) dispatch() {
	if !atomic.CompareAndSwapInt32(&r.inRun, 0, 1) {
		log.Warn("previous run still in progress, skipping this tick")
		return
	}

	now := time.Now()
	r.mu.Lock()
	r.lastRunAt = now
	r.nextRunAt = now.Add(r.interval)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer atomic.StoreInt32(&r.inRun, 0)

		summary, err := r.trigger.Run(r.ctx, pipeline.RunOptions{})

		atomic.AddInt64(&r.totalRuns, 1)
		if err != nil {
			atomic.AddInt64(&r.totalErrors, 1)
		}

		r.mu.Lock()
		r.lastSummary = &summary
		r.lastError = err
		r.mu.Unlock()
	}()
}
