package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/openvital/smartva-bridge/internal/scheduler"
	"github.com/openvital/smartva-bridge/internal/store"
)

// StatusSource exposes the schedule runner's current state.
type StatusSource interface {
	Status() scheduler.Status
}

// FailureReader reads the persisted failure log.
type FailureReader interface {
	Recent(ctx context.Context, limit int) ([]store.Failure, error)
	CountByCondition(ctx context.Context) (map[string]int, error)
}

// CursorReader reads how far imports have progressed.
type CursorReader interface {
	Get(ctx context.Context, pipeline string) (time.Time, bool, error)
}

// Handlers answers the ops endpoints.
type Handlers struct {
	db       *sql.DB
	sched    StatusSource
	failures FailureReader
	cursor   CursorReader
	pipeline string
}

// NewHandlers creates the handler set. pipeline names the cursor row the
// status endpoint reports on.
func NewHandlers(db *sql.DB, sched StatusSource, failures FailureReader, cursor CursorReader, pipeline string) *Handlers {
	return &Handlers{db: db, sched: sched, failures: failures, cursor: cursor, pipeline: pipeline}
}

// HealthCheck reports liveness plus database reachability.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	database := "ok"
	code := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		status = "degraded"
		database = err.Error()
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]interface{}{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UTC(),
	})
}

// RunStatus reports the runner snapshot plus the persisted import cursor.
func (h *Handlers) RunStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"scheduler": h.sched.Status(),
	}
	if end, found, err := h.cursor.Get(r.Context(), h.pipeline); err == nil && found {
		resp["imported_through"] = end.UTC()
	}
	respondJSON(w, http.StatusOK, resp)
}

// RecentFailures lists the newest failure rows and per-condition totals.
func (h *Handlers) RecentFailures(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	failures, err := h.failures.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := h.failures.CountByCondition(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if failures == nil {
		failures = []store.Failure{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"failures":     failures,
		"by_condition": counts,
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
