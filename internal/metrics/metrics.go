// Package metrics collects run metrics for the node_exporter textfile
// collector. miapp is a short-lived CLI, so nothing is served over HTTP; the
// registry is written to a file at exit.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registry and collectors of one run.
type Metrics struct {
	// Self-update metrics
	UpdateOutcomes      *prometheus.CounterVec
	UpdateCheckDuration prometheus.Histogram

	// Submission metrics
	Submissions        *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.UpdateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miapp_update_outcome_total",
			Help: "Update cycles by outcome",
		},
		[]string{"outcome"},
	)

	m.UpdateCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "miapp_update_check_duration_seconds",
			Help:    "Duration of update cycles",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	m.Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miapp_submissions_total",
			Help: "Business requests by api and status",
		},
		[]string{"api", "status"},
	)

	m.SubmissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "miapp_submission_duration_seconds",
			Help:    "Duration of business requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"api"},
	)

	m.registry.MustRegister(
		m.UpdateOutcomes,
		m.UpdateCheckDuration,
		m.Submissions,
		m.SubmissionDuration,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpdate records one update cycle.
func (m *Metrics) ObserveUpdate(outcome string, elapsed time.Duration) {
	m.UpdateOutcomes.WithLabelValues(outcome).Inc()
	m.UpdateCheckDuration.Observe(elapsed.Seconds())
}

// ObserveSubmission records one business request. Status 0 means no response.
func (m *Metrics) ObserveSubmission(api string, status int, elapsed time.Duration) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}

	m.Submissions.WithLabelValues(api, label).Inc()
	m.SubmissionDuration.WithLabelValues(api).Observe(elapsed.Seconds())
}

// WriteFile writes the registry in text format. The file is replaced
// atomically, as the textfile collector expects.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
