package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OffRampTotal counts withdrawal submissions by outcome.
	OffRampTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offramp_submissions_total",
		Help: "Total off-ramp withdrawal submissions by outcome",
	}, []string{"outcome"})

	// OffRampDuration observes end-to-end submission latency.
	OffRampDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offramp_submission_duration_seconds",
		Help:    "Off-ramp submission duration by outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// OffRampAmount observes submitted token amounts.
	OffRampAmount = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offramp_amount",
		Help:    "Off-ramp token amounts by token",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"token"})

	// TransferFallbackTotal counts abstracted transfers that fell back to a
	// direct transaction.
	TransferFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offramp_transfer_fallback_total",
		Help: "Gas-abstracted transfers that fell back to a direct transfer",
	})

	// GasAbstractionInitTotal counts initializer outcomes.
	GasAbstractionInitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gas_abstraction_init_total",
		Help: "Gas abstraction initialization attempts by result",
	}, []string{"result"})

	// ProcessorRequestDuration observes payment-processor API latency.
	ProcessorRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processor_request_duration_seconds",
		Help:    "Payment processor request duration by endpoint",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	// BalanceFetchTotal counts balance refreshes, including discarded stale
	// completions.
	BalanceFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "balance_fetch_total",
		Help: "Token balance fetches by result (ok, error, stale)",
	}, []string{"result"})
)
