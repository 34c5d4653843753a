package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout and reconciliation outcomes.
type CheckoutMetrics struct {
	duration        *prometheus.HistogramVec
	outcomes        *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	syncFailures    prometheus.Counter
}

// NewCheckoutMetrics registers the storefront metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transitions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reconciliations_total",
		Help: "Cart reconciliations by trigger and outcome.",
	}, []string{"trigger", "outcome"})
	syncFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_failures_total",
		Help: "Remote cart mirror calls that failed after a local mutation.",
	})
	reg.MustRegister(duration, outcomes, reconciliations, syncFailures)
	return &CheckoutMetrics{
		duration:        duration,
		outcomes:        outcomes,
		reconciliations: reconciliations,
		syncFailures:    syncFailures,
	}
}

// ObserveCheckout records one checkout attempt.
func (m *CheckoutMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.outcomes.WithLabelValues(outcome).Inc()
}

// IncReconciliation records one reconciliation attempt.
func (m *CheckoutMetrics) IncReconciliation(trigger, outcome string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(trigger, outcome).Inc()
}

// IncSyncFailure records a failed remote mirror call.
func (m *CheckoutMetrics) IncSyncFailure() {
	if m == nil || m.syncFailures == nil {
		return
	}
	m.syncFailures.Inc()
}
