package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		returnEventsTotal,
		returnEventsDroppedTotal,
		reconcileTransitionsTotal,
	)
}

var (
	returnEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "return_events_total",
			Help: "Return notifications observed on focus, by classification.",
		},
		[]string{"classification"},
	)

	// reason: in_progress|consumed|terminal|no_session|unknown_state
	returnEventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "return_events_dropped_total",
			Help: "Return notifications dropped before reaching a transition.",
		},
		[]string{"reason"},
	)

	reconcileTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_transitions_total",
			Help: "Reconciliation engine state transitions.",
		},
		[]string{"from", "to"},
	)
)

func IncReturnEvent(classification string) {
	returnEventsTotal.WithLabelValues(norm(classification)).Inc()
}

func IncReturnEventDropped(reason string) {
	returnEventsDroppedTotal.WithLabelValues(norm(reason)).Inc()
}

func IncTransition(from, to string) {
	reconcileTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}
