package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/equito-network/equitovote/metrics"
)

// Metrics tracks proof retrieval by path and outcome.
type Metrics struct {
	// ProofRequests counts requests labeled by path (primary, fallback) and
	// outcome (success, failure, canceled).
	ProofRequests *prometheus.CounterVec
}

// NewMetrics registers relay metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	r := metrics.NewComponentRegistry("relay", reg)
	return &Metrics{
		ProofRequests: r.NewCounterVec(prometheus.CounterOpts{
			Name: "proof_requests_total",
			Help: "Delivery-proof requests by path and outcome.",
		}, []string{"path", "outcome"}),
	}
}
