// Package metrics exposes Prometheus instrumentation for import runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus collectors. All methods are
// nil-safe so tests and one-shot CLI invocations can run unmetered.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec
	RecordsTotal *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	LastRun      prometheus.Gauge
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smartva_bridge_runs_total",
			Help: "Completed import runs by mode and result",
		}, []string{"mode", "result"}), // mode: scheduled/manual/backfill, result: ok/aborted/interrupted

		RecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smartva_bridge_records_total",
			Help: "Processed records by outcome",
		}, []string{"outcome"}), // outcome: success/duplicate/error

		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartva_bridge_run_duration_seconds",
			Help:    "End-to-end duration of import runs including download and classification",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}),

		LastRun: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "smartva_bridge_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}
}

// IncrementRun records one completed run.
func (m *Metrics) IncrementRun(mode, result string) {
	if m != nil {
		m.RunsTotal.WithLabelValues(mode, result).Inc()
	}
}

// IncrementRecord records one record outcome.
func (m *Metrics) IncrementRecord(outcome string) {
	if m != nil {
		m.RecordsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRun records a run's duration and refreshes the last-run gauge.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
		m.LastRun.SetToCurrentTime()
	}
}
