package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the workflow engine. A nil
// *Metrics records nothing.
type Metrics struct {
	workflowTotal   *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	pollAttempts    *prometheus.CounterVec
	cleanupFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		workflowTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hcprov",
				Name:      "workflow_total",
				Help:      "Total number of workflows by kind, operation and result",
			},
			[]string{"kind", "operation", "result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hcprov",
				Subsystem: "workflow",
				Name:      "stage_duration_seconds",
				Help:      "Duration of workflow stages in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"kind", "stage"},
		),
		pollAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hcprov",
				Name:      "poll_attempts_total",
				Help:      "Total number of completion poll attempts by outcome",
			},
			[]string{"outcome"},
		),
		cleanupFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hcprov",
				Name:      "cleanup_failures_total",
				Help:      "Total number of tolerated auxiliary deletion failures by kind",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.workflowTotal, m.stageDuration, m.pollAttempts, m.cleanupFailures)
	}
	return m
}

// RecordWorkflow counts a finished workflow.
func (m *Metrics) RecordWorkflow(kind, operation, result string) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(kind, operation, result).Inc()
}

// ObserveStage records how long a stage handler ran.
func (m *Metrics) ObserveStage(kind string, stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(kind, string(stage)).Observe(d.Seconds())
}

// RecordPollAttempt implements poll.AttemptRecorder.
func (m *Metrics) RecordPollAttempt(outcome string) {
	if m == nil {
		return
	}
	m.pollAttempts.WithLabelValues(outcome).Inc()
}

// RecordCleanupFailure counts a tolerated teardown failure.
func (m *Metrics) RecordCleanupFailure(kind string) {
	if m == nil {
		return
	}
	m.cleanupFailures.WithLabelValues(kind).Inc()
}
