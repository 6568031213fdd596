// Package metrics records provisioning step outcomes as Prometheus metrics.
// A one-shot CLI has no scrape endpoint, so the registry is written to a
// node_exporter textfile collector file at the end of a run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Step metrics
	StepDurationSeconds *prometheus.HistogramVec
	StepsTotal          *prometheus.CounterVec

	// Run metrics
	RunDurationSeconds *prometheus.GaugeVec
	LastRunTimestamp   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		StepDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "medshop_deploy_step_duration_seconds",
				Help:    "Provisioning step duration in seconds by phase and step",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800}, // package upgrades reach 30min
			},
			[]string{"phase", "step"},
		),

		StepsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "medshop_deploy_steps_total",
				Help: "Total number of provisioning steps by phase and status",
			},
			[]string{"phase", "status"}, // status: ok, skipped, failed
		),

		RunDurationSeconds: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medshop_deploy_run_duration_seconds",
				Help: "Duration of the most recent run by phase",
			},
			[]string{"phase"},
		),

		LastRunTimestamp: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medshop_deploy_last_run_timestamp_seconds",
				Help: "Unix time the most recent run of a phase finished, by final status",
			},
			[]string{"phase", "status"}, // status: complete, aborted
		),
	}

	return m
}

// RecordStep records a finished step
func (m *Metrics) RecordStep(phase, step, status string, duration time.Duration) {
	m.StepsTotal.WithLabelValues(phase, status).Inc()
	m.StepDurationSeconds.WithLabelValues(phase, step).Observe(duration.Seconds())
}

// RecordRun records a finished run
func (m *Metrics) RecordRun(phase, status string, duration time.Duration, finished time.Time) {
	m.RunDurationSeconds.WithLabelValues(phase).Set(duration.Seconds())
	m.LastRunTimestamp.WithLabelValues(phase, status).Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in text exposition format for the
// node_exporter textfile collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: create textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}
