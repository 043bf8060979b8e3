package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentLinksTotal,
		activationsTotal,
		activationDuration,
		staleAttemptsSweptTotal,
	)
}

var (
	// result: ok|unauthenticated|provider_error
	paymentLinksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_links_total",
			Help: "Checkout session creation requests by result.",
		},
		[]string{"result"},
	)

	// result: succeeded|failed|needs_reauth
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activations_total",
			Help: "Activation sequence runs by result.",
		},
		[]string{"result"},
	)

	activationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "activation_duration_seconds",
			Help:    "Duration of the activation sequence (set, read, verify) in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	staleAttemptsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_attempts_swept_total",
			Help: "Pending activation attempts closed as interrupted by the sweeper.",
		},
	)
)

func IncPaymentLink(result string) {
	paymentLinksTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveActivation(result string, d time.Duration) {
	activationsTotal.WithLabelValues(norm(result)).Inc()
	activationDuration.WithLabelValues(norm(result)).Observe(d.Seconds())
}

func AddStaleAttemptsSwept(n int) {
	staleAttemptsSweptTotal.Add(float64(n))
}
