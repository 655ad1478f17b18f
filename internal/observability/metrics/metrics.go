package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "clinic"

// BookingMetrics exposes counters/histograms for appointment flows.
type BookingMetrics struct {
	attemptsTotal    *prometheus.CounterVec
	slotQueriesTotal *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	lockWait         prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "booking_attempts_total",
			Help:      "Booking and reschedule attempts by outcome and rejection reason",
		}, []string{"operation", "outcome", "reason"}),
		slotQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "slot_queries_total",
			Help:      "Availability lookups, split by whether any slot was open",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "status_transitions_total",
			Help:      "Appointment status changes by target status",
		}, []string{"status"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "date_lock_seconds",
			Help:      "Time spent inside the per-date booking critical section",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.slotQueriesTotal, m.transitionsTotal, m.lockWait)
	return m
}

// ObserveAttempt records a booking or reschedule. reason is empty on success.
func (m *BookingMetrics) ObserveAttempt(operation, outcome, reason string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(operation, outcome, reason).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(open int) {
	if m == nil {
		return
	}
	result := "available"
	if open == 0 {
		result = "full"
	}
	m.slotQueriesTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveLockDuration(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}
