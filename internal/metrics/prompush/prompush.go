// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A migration run is a batch job, so pushing on completion fits better than
// exposing a scrape endpoint that would disappear with the process. All
// Prometheus-specific dependencies are contained here; the rest of the
// program sees only metrics.Backend.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/equinax/stockmigrate/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // migrate_step_total
	stepDuration *prometheus.SummaryVec // migrate_step_duration_seconds

	recordCounter *prometheus.CounterVec // migrate_records_total
	batchCounter  prometheus.Counter     // migrate_batches_total
}

// NewBackend constructs a Prometheus Pushgateway backend. jobName becomes
// the Pushgateway "job" grouping key; gatewayURL is the server base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "migrate"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migrate_step_total",
			Help: "Total number of migration step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "migrate_step_duration_seconds",
			Help:       "Duration of migration steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migrate_records_total",
			Help: "Migrated record counts per destination table.",
		},
		[]string{"table"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "migrate_batches_total",
			Help: "Total number of write batches flushed for this migration job.",
		},
	)

	if err := reg.Register(stepCounter); err != nil {
		return nil, fmt.Errorf("prompush: register step counter: %w", err)
	}
	if err := reg.Register(stepDuration); err != nil {
		return nil, fmt.Errorf("prompush: register step summary: %w", err)
	}
	if err := reg.Register(recordCounter); err != nil {
		return nil, fmt.Errorf("prompush: register record counter: %w", err)
	}
	if err := reg.Register(batchCounter); err != nil {
		return nil, fmt.Errorf("prompush: register batch counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "migrate_step_total":
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case "migrate_records_total":
		b.recordCounter.WithLabelValues(labels["table"]).Add(delta)

	case "migrate_batches_total":
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveDuration(name string, value float64, labels metrics.Labels) {
	if name != "migrate_step_duration_seconds" {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
