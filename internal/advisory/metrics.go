package advisory

import "github.com/prometheus/client_golang/prometheus"

// Outcomes recorded on advisory_requests_total.
const (
	outcomeHit   = "hit"
	outcomeMiss  = "miss"
	outcomeError = "error"
)

var (
	adviceReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_requests_total",
			Help: "Advisory requests by kind and outcome (hit, miss, error).",
		},
		[]string{"kind", "outcome"},
	)

	providerLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisory_provider_seconds",
			Help:    "Latency of external advisory provider calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(adviceReqs, providerLat)
}
