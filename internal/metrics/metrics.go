// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from a migration run.
//
// It exposes a narrow Backend interface (counters plus timing observations)
// behind a global, pluggable backend that defaults to a no-op, so metric
// calls are always safe even when nothing is configured. Concrete systems
// (Prometheus Pushgateway today) live in subpackages and are the only places
// that import metric-system dependencies.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a duration-style value in seconds.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)      {}
func (nopBackend) ObserveDuration(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure for one migration step
// (schema bootstrap or one table's migration).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter("migrate_step_total", 1, lbls)
	backend.ObserveDuration("migrate_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments the migrated-record counter for one destination table.
func RecordRows(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("migrate_records_total", float64(delta), Labels{
		"job":   job,
		"table": table,
	})
}

// RecordBatches increments the flushed-batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("migrate_batches_total", float64(delta), Labels{
		"job": job,
	})
}
