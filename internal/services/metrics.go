package services

import "github.com/prometheus/client_golang/prometheus"

var (
	churnRecomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churn_recomputations_total",
			Help: "Client metric recomputations by result (updated, missing, error).",
		},
		[]string{"result"},
	)

	rateGateDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_gate_denials_total",
			Help: "Advisory requests denied by the sliding-window gate, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(churnRecomputes, rateGateDenials)
}
