package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		tierTransitionsTotal,
		subscriptionsExpired,
		checkoutSessionsTotal,
	)
}

var (
	tierTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_transitions_total",
			Help:      "Tier transitions applied by the reconciler, labeled by direction (created/upgraded/downgraded/cancelled/expired).",
		},
		[]string{"direction"},
	)

	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Lapsed paid subscriptions downgraded by the expiry sweep.",
		},
	)

	checkoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout and portal session broker calls by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func IncTierTransition(direction string) {
	tierTransitionsTotal.WithLabelValues(norm(direction)).Inc()
}

func AddSubscriptionsExpired(n int) {
	subscriptionsExpired.Add(float64(n))
}

func IncCheckoutSession(kind, outcome string) {
	checkoutSessionsTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}
