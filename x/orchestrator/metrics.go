package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/equito-network/equitovote/metrics"
)

// Metrics tracks operation outcomes and per-step latency.
type Metrics struct {
	// Operations counts finished runs labeled by flow and outcome
	// (completed, retry, rejected).
	Operations *prometheus.CounterVec
	// StepDuration observes wall time per orchestration step.
	StepDuration *prometheus.HistogramVec
}

// NewMetrics registers orchestrator metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	r := metrics.NewComponentRegistry("orchestrator", reg)
	return &Metrics{
		Operations: r.NewCounterVec(prometheus.CounterOpts{
			Name: "operations_total",
			Help: "Cross-chain operations by flow and outcome.",
		}, []string{"flow", "outcome"}),
		StepDuration: r.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "step_duration_seconds",
			Help:    "Duration of each orchestration step.",
			Buckets: metrics.DurationBuckets,
		}, []string{"step"}),
	}
}

func (m *Metrics) observeStep(step string, start time.Time) {
	if m != nil {
		m.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) countOutcome(flow, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(flow, outcome).Inc()
	}
}
