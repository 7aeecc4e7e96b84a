package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRealtimeMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRealtimeMetrics(reg)

	m.SetConnectionState(2)
	m.ObserveConnect("success")
	m.ObserveConnect("success")
	m.ObserveConnect("auth_rejected")
	m.ReconnectScheduled()
	m.ObserveFrame("APPOINTMENT", "applied")
	m.ObserveFrame("", "malformed")
	m.AuthRedirect()
	m.ObserveHandlerLatency("APPOINTMENT", 0.01)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.connectionState))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.connectAttempts.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.connectAttempts.WithLabelValues("auth_rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconnectsScheduled))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.frames.WithLabelValues("unknown", "malformed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authRedirects))
}

func TestRealtimeMetricsNilSafe(t *testing.T) {
	var m *RealtimeMetrics
	m.SetConnectionState(1)
	m.ObserveConnect("success")
	m.ReconnectScheduled()
	m.ObserveFrame("NOTIFICATION", "applied")
	m.AuthRedirect()
	m.ObserveHandlerLatency("NOTIFICATION", 0.1)
}
