package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// checkoutSubmissions counts Submit outcomes: created, replayed, invalid,
	// in_flight, failed.
	checkoutSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_submissions_total",
			Help: "Checkout submissions by outcome.",
		},
		[]string{"outcome"},
	)

	// orderTransitions counts transition attempts. from is empty when the
	// order could not be loaded.
	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transition attempts by edge and result.",
		},
		[]string{"from", "to", "result"},
	)
)

func init() {
	prometheus.MustRegister(checkoutSubmissions, orderTransitions)
}
