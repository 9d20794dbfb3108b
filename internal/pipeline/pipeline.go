// Package pipeline runs the verbal-autopsy import: pull ODK exports for a
// time window, classify causes of death, and push the results into the
// DHIS2 registry while tallying what happened to every record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openvital/smartva-bridge/internal/dhis"
	"github.com/openvital/smartva-bridge/internal/metrics"
	"github.com/openvital/smartva-bridge/internal/pkg/logger"
	"github.com/openvital/smartva-bridge/internal/va"
)

var log = logger.Component("pipeline")

// Downloader pulls raw survey rows from the collection server into a local
// CSV and returns its path.
type Downloader interface {
	Export(ctx context.Context, start, end time.Time, all bool) (string, error)
}

// Classifier turns a raw survey CSV into a cause-of-death CSV. An empty
// path with a nil error means the classifier produced no output.
type Classifier interface {
	Classify(ctx context.Context, rawCSV string) (string, error)
}

// Checker answers whether a study ID is already in the registry and
// remembers the ones we import.
type Checker interface {
	Check(ctx context.Context, sid string) (bool, error)
	MarkKnown(ctx context.Context, sid string)
}

// Submitter posts one event to the registry and returns its reference.
type Submitter interface {
	PostEvent(ctx context.Context, ev dhis.Event) (string, error)
}

// Archiver keeps copies of run artifacts. Failures are the archiver's to
// log; a run never aborts over archiving.
type Archiver interface {
	Store(ctx context.Context, runID string, paths ...string)
}

// RunAbortError wraps a failure that stopped a run before all records were
// handled, naming the stage that failed.
type RunAbortError struct {
	Stage string
	Err   error
}

func (e *RunAbortError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RunAbortError) Unwrap() error {
	return e.Err
}

func abort(stage string, err error) error {
	return &RunAbortError{Stage: stage, Err: err}
}

// RunOptions selects how a run sources its input.
type RunOptions struct {
	// ManualPath skips download and classification windowing and imports
	// an already-classified CSV directly.
	ManualPath string
	// FetchAll pulls every record the collection server has instead of a
	// time window.
	FetchAll bool
}

// Mode names the run for logs and metrics.
func (o RunOptions) Mode() string {
	switch {
	case o.ManualPath != "":
		return "manual"
	case o.FetchAll:
		return "backfill"
	default:
		return "scheduled"
	}
}

// Pipeline wires the stages together. All collaborators are injected;
// Archiver, Metrics, and Now are optional.
type Pipeline struct {
	Resolver   *Resolver
	Downloader Downloader
	Classifier Classifier
	Checker    Checker
	Submitter  Submitter
	Builder    va.EventBuilder
	Failures   FailureWriter
	Archiver   Archiver
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Run executes one import pass and returns its summary. The summary is
// meaningful even on error: it counts the records handled before the run
// stopped.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	started := p.now()
	runID := uuid.New().String()[:8]
	mode := opts.Mode()
	log.Info("run starting", "run_id", runID, "mode", mode)

	summary, err := p.run(ctx, runID, opts)

	elapsed := p.now().Sub(started)
	p.Metrics.ObserveRun(elapsed)
	result := "ok"
	if err != nil {
		result = "aborted"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result = "interrupted"
		}
	}
	p.Metrics.IncrementRun(mode, result)

	if err != nil {
		log.Error("run stopped", "run_id", runID, "mode", mode, "summary", summary.String(), "error", err)
		return summary, err
	}
	log.Info("run complete", "run_id", runID, "mode", mode,
		"summary", summary.String(), "elapsed", elapsed.Round(time.Millisecond).String())
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, opts RunOptions) (Summary, error) {
	agg := NewAggregator(p.Failures, p.Metrics)

	rawPath := opts.ManualPath
	var w Window
	if rawPath == "" {
		var err error
		w, err = p.Resolver.Resolve(ctx, p.now())
		if err != nil {
			return agg.Summary(), abort("resolving time window", err)
		}
		if !opts.FetchAll && !w.End.After(w.Start) {
			log.Info("time window is empty, nothing to pull", "window", w.String())
			return agg.Summary(), nil
		}
		log.Info("pulling records", "window", w.String(), "fetch_all", opts.FetchAll)
		rawPath, err = p.Downloader.Export(ctx, w.Start, w.End, opts.FetchAll)
		if err != nil {
			return agg.Summary(), abort("downloading records", err)
		}
		// The cursor moves as soon as the pull lands. Losing the update
		// only widens the next window; duplicate detection absorbs the
		// re-read.
		if err := p.Resolver.Advance(ctx, w); err != nil {
			log.Error("advancing window cursor", "window", w.String(), "error", err)
		}
	}

	ok, err := va.HasContent(rawPath)
	if err != nil {
		return agg.Summary(), abort("reading export", err)
	}
	if !ok {
		if w.IsZero() {
			log.Info("no records to process", "input", rawPath)
		} else {
			log.Info("no new records to process", "window", w.String())
		}
		return agg.Summary(), nil
	}

	classified, err := p.Classifier.Classify(ctx, rawPath)
	if err != nil {
		return agg.Summary(), abort("classifying causes", err)
	}

	if p.Archiver != nil {
		paths := []string{rawPath}
		if classified != "" {
			paths = append(paths, classified)
		}
		p.Archiver.Store(ctx, runID, paths...)
	}

	ok, err = va.HasContent(classified)
	if err != nil {
		return agg.Summary(), abort("reading classified records", err)
	}
	if !ok {
		log.Warn("classifier produced no causes", "input", rawPath)
		return agg.Summary(), nil
	}

	records, err := va.ReadFile(classified)
	if err != nil {
		return agg.Summary(), abort("reading classified records", err)
	}

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return agg.Summary(), abort("processing records", err)
		}
		log.Info("processing record", "record", fmt.Sprintf("%d/%d", i+1, len(records)), "sid", raw.SID())
		agg.Record(ctx, p.processRecord(ctx, raw))
	}
	return agg.Summary(), nil
}

// processRecord walks one record through parse, duplicate check, and
// submission, and classifies the result. It never returns an error: every
// record ends as exactly one outcome.
func (p *Pipeline) processRecord(ctx context.Context, raw va.RawRecord) Outcome {
	sid := raw.SID()
	rec, fatals, warnings := va.Parse(raw)
	for _, warn := range warnings {
		log.Warn("record issue", "sid", sid, "issue", warn.Error())
	}
	if len(fatals) > 0 {
		for _, e := range fatals {
			log.Error("record rejected", "sid", sid, "error", e)
		}
		return Outcome{Result: ResultError, SID: sid, Raw: raw, Condition: va.ConditionOf(fatals[0]), Errs: fatals}
	}

	dup, err := p.Checker.Check(ctx, rec.SID)
	if err != nil {
		log.Error("duplicate check failed", "sid", rec.SID, "error", err)
		return Outcome{Result: ResultError, SID: rec.SID, Raw: raw, Condition: CondDuplicateCheck, Errs: []error{err}}
	}
	if dup {
		log.Info("record already in registry", "sid", rec.SID)
		return Outcome{Result: ResultDuplicate, SID: rec.SID, Raw: raw, Condition: CondDuplicate, Errs: []error{ErrAlreadyImported}}
	}

	ref, err := p.Submitter.PostEvent(ctx, p.Builder.Build(rec))
	if err != nil {
		log.Error("registry rejected event", "sid", rec.SID, "error", err)
		return Outcome{Result: ResultError, SID: rec.SID, Raw: raw, Condition: CondSubmitRejected, Errs: []error{err}}
	}
	p.Checker.MarkKnown(ctx, rec.SID)
	log.Info("event imported", "sid", rec.SID, "event", ref)
	return Outcome{Result: ResultSuccess, SID: rec.SID, Raw: raw}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
