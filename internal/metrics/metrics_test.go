package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveAttempt("confirmed", 0.02)
	m.ObserveAttempt("confirmed", 0.03)
	m.ObserveAttempt("slot_unavailable", 0.01)
	m.ObserveClaim("claimed")
	m.SetOrphaned(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.attemptsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.attemptsTotal.WithLabelValues("slot_unavailable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.claimsTotal.WithLabelValues("claimed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.orphanedSlots))
}

func TestNilBookingMetricsIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAttempt("confirmed", 1)
	m.ObserveClaim("claimed")
	m.SetOrphaned(1)
}
