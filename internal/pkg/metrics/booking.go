package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics records the engine's decisions and commit outcomes.
type BookingMetrics struct {
	decisions   *prometheus.CounterVec
	overrides   prometheus.Counter
	cancelled   prometheus.Counter
	txFailures  *prometheus.CounterVec
	checkTiming *prometheus.HistogramVec
}

// NewBookingMetrics registers the booking metrics on the provided registerer.
// A nil registerer yields a collector whose methods do nothing.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_decisions_total",
		Help: "Booking attempts by decision outcome.",
	}, []string{"outcome"})
	overrides := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_overrides_total",
		Help: "Committed priority overrides.",
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_override_cancellations_total",
		Help: "Reservations cancelled by priority overrides.",
	})
	txFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transaction_failures_total",
		Help: "Writes that rolled back, and attempts that could not take their resource locks.",
	}, []string{"operation"})
	checkTiming := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_check_duration_seconds",
		Help:    "Time spent detecting and resolving conflicts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(decisions, overrides, cancelled, txFailures, checkTiming)
	return &BookingMetrics{
		decisions:   decisions,
		overrides:   overrides,
		cancelled:   cancelled,
		txFailures:  txFailures,
		checkTiming: checkTiming,
	}
}

// IncDecision counts one resolved attempt.
func (m *BookingMetrics) IncDecision(outcome string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncOverride counts one committed override and the reservations it cancelled.
func (m *BookingMetrics) IncOverride(cancelled int) {
	if m == nil || m.overrides == nil {
		return
	}
	m.overrides.Inc()
	m.cancelled.Add(float64(cancelled))
}

// IncTxFailure counts a rolled back write. Attempts that never got their
// resource locks are counted under the "lock" operation.
func (m *BookingMetrics) IncTxFailure(operation string) {
	if m == nil || m.txFailures == nil {
		return
	}
	m.txFailures.WithLabelValues(normalizeLabel(operation)).Inc()
}

// ObserveCheck records how long an operation spent in conflict detection.
func (m *BookingMetrics) ObserveCheck(operation string, d time.Duration) {
	if m == nil || m.checkTiming == nil {
		return
	}
	m.checkTiming.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
