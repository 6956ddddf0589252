// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the sales pipeline.
//
// Callers use the package-level helpers (RecordStage, RecordRow,
// RecordBatches). They go to a global backend that defaults to a no-op, so
// instrumentation is always safe to call. Concrete systems live in
// subpackages: prompush (Prometheus Pushgateway) and datadog (DogStatsD).
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers.
const (
	StageTotal    = "etl_stage_total"
	StageDuration = "etl_stage_duration_seconds"
	RecordsTotal  = "etl_records_total"
	BatchesTotal  = "etl_batches_total"
)

// Record kinds used with RecordRow.
const (
	KindRead       = "read"
	KindRepaired   = "repaired"
	KindDuplicates = "duplicates"
	KindInserted   = "inserted"
	KindExported   = "exported"
	KindRejected   = "rejected"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStage counts one stage execution under its final status
// ("success", "partial", "skipped", "fatal") and observes its duration.
func RecordStage(job, stage, status string, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"stage":  stage,
		"status": status,
	}
	b := current()
	b.IncCounter(StageTotal, 1, lbls)
	b.ObserveHistogram(StageDuration, d.Seconds(), lbls)
}

// RecordRow adds delta to the record counter of kind (see the Kind
// constants). Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
