package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openvital/smartva-bridge/internal/metrics"
	"github.com/openvital/smartva-bridge/internal/store"
	"github.com/openvital/smartva-bridge/internal/va"
)

// ErrAlreadyImported marks a record whose study ID is already present in
// the registry.
var ErrAlreadyImported = errors.New("record already exists in registry")

// Result classifies one record's terminal state.
type Result string

const (
	ResultSuccess   Result = "success"
	ResultDuplicate Result = "duplicate"
	ResultError     Result = "error"
)

// Condition tags for outcomes decided past parsing. Parse failures carry
// their own tags from the validation errors.
const (
	CondDuplicate      = "duplicate"
	CondDuplicateCheck = "duplicate_check_failed"
	CondSubmitRejected = "submit_rejected"
)

// Outcome is the terminal classification of one record. Exactly one is
// produced per row that reached parsing.
type Outcome struct {
	Result    Result
	SID       string
	Raw       va.RawRecord
	Condition string
	Errs      []error
}

// Summary carries one run's counts. Success, Duplicate, and Error always
// sum to Parsed: no record is silently dropped.
type Summary struct {
	Parsed    int `json:"parsed"`
	Success   int `json:"success"`
	Duplicate int `json:"duplicate"`
	Error     int `json:"error"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Parsed ODK records: %d | Imported: %d | Duplicates: %d | Errors: %d",
		s.Parsed, s.Success, s.Duplicate, s.Error)
}

// FailureWriter appends non-success outcomes for audit and manual replay.
type FailureWriter interface {
	Write(ctx context.Context, f *store.Failure) error
}

// Aggregator tallies outcomes for one run and persists every non-success
// one. Duplicates and errors stay separate all the way through; they are
// never merged at presentation time.
type Aggregator struct {
	failures FailureWriter
	metrics  *metrics.Metrics
	summary  Summary
}

// NewAggregator creates an aggregator writing to the given failure store.
// metrics may be nil.
func NewAggregator(failures FailureWriter, m *metrics.Metrics) *Aggregator {
	return &Aggregator{failures: failures, metrics: m}
}

// Record consumes one outcome: bumps the counts and, for duplicates and
// errors, appends the failure row. A failed append is logged and the
// count still moves, keeping the sum invariant intact.
func (a *Aggregator) Record(ctx context.Context, o Outcome) {
	a.summary.Parsed++
	a.metrics.IncrementRecord(string(o.Result))

	switch o.Result {
	case ResultSuccess:
		a.summary.Success++
		return
	case ResultDuplicate:
		a.summary.Duplicate++
	default:
		a.summary.Error++
	}

	raw, err := json.Marshal(o.Raw)
	if err != nil {
		log.Error("encoding raw record for failure store", "sid", o.SID, "error", err)
		raw = nil
	}
	f := &store.Failure{
		SID:       o.SID,
		Condition: o.Condition,
		Message:   joinErrors(o.Errs),
		RawRecord: raw,
	}
	if err := a.failures.Write(ctx, f); err != nil {
		log.Error("persisting failure", "sid", o.SID, "condition", o.Condition, "error", err)
	}
}

// Summary returns the counts so far.
func (a *Aggregator) Summary() Summary {
	return a.summary
}

func joinErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
