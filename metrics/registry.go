package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "equitovote"

// Shared histogram buckets.
var (
	// DurationBuckets covers sub-second contract reads up to multi-minute
	// proof waits.
	DurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

	// CountBuckets suits small discrete counts such as retry attempts.
	CountBuckets = []float64{1, 2, 5, 10, 25, 50, 100}
)

// ComponentRegistry scopes metrics under a common namespace/subsystem pair so
// every component names its series consistently.
type ComponentRegistry struct {
	subsystem string
	registry  prometheus.Registerer
}

// NewComponentRegistry creates a registry for a component. A nil registerer
// defaults to the process-global prometheus registry.
func NewComponentRegistry(subsystem string, reg prometheus.Registerer) *ComponentRegistry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &ComponentRegistry{subsystem: subsystem, registry: reg}
}

func (r *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	return promauto.With(r.registry).NewCounter(opts)
}

func (r *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	return promauto.With(r.registry).NewCounterVec(opts, labels)
}

func (r *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	return promauto.With(r.registry).NewGauge(opts)
}

func (r *ComponentRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	return promauto.With(r.registry).NewGaugeVec(opts, labels)
}

func (r *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	return promauto.With(r.registry).NewHistogram(opts)
}

func (r *ComponentRegistry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	return promauto.With(r.registry).NewHistogramVec(opts, labels)
}
