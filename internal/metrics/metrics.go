package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	attemptsTotal  *prometheus.CounterVec
	claimsTotal    *prometheus.CounterVec
	bookingLatency prometheus.Histogram
	orphanedSlots  prometheus.Gauge
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by final outcome",
		}, []string{"outcome"}),
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "claims_total",
			Help:      "Slot claim attempts by result",
		}, []string{"result"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "duration_seconds",
			Help:      "End to end latency of a booking attempt",
			Buckets:   prometheus.DefBuckets,
		}),
		orphanedSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "orphaned_slots",
			Help:      "Claimed slots without a ledger entry at the last reconciliation run",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.claimsTotal, m.bookingLatency, m.orphanedSlots)
	return m
}

func (m *BookingMetrics) ObserveAttempt(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) SetOrphaned(n int) {
	if m == nil {
		return
	}
	m.orphanedSlots.Set(float64(n))
}
