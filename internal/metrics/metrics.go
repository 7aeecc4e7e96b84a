package metrics

import "github.com/prometheus/client_golang/prometheus"

// RealtimeMetrics expõe contadores do cliente realtime. Todos os métodos aceitam receptor nil.
type RealtimeMetrics struct {
	connectionState     prometheus.Gauge
	connectAttempts     *prometheus.CounterVec
	reconnectsScheduled prometheus.Counter
	frames              *prometheus.CounterVec
	authRedirects       prometheus.Counter
	handlerLatency      *prometheus.HistogramVec
}

func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	m := &RealtimeMetrics{
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "olmeda_realtime",
			Subsystem: "client",
			Name:      "connection_state",
			Help:      "Current connection state (0 disconnected, 1 connecting, 2 connected)",
		}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "olmeda_realtime",
			Subsystem: "client",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by result",
		}, []string{"result"}),
		reconnectsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "olmeda_realtime",
			Subsystem: "client",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnections scheduled after transport failures",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "olmeda_realtime",
			Subsystem: "client",
			Name:      "frames_total",
			Help:      "Inbound frames by event kind and result",
		}, []string{"kind", "result"}),
		authRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "olmeda_realtime",
			Subsystem: "client",
			Name:      "auth_redirects_total",
			Help:      "Redirects to authentication after terminal auth failures",
		}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "olmeda_realtime",
			Subsystem: "client",
			Name:      "handler_latency_seconds",
			Help:      "Time spent writing an inbound event into the state store",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.connectionState, m.connectAttempts, m.reconnectsScheduled, m.frames, m.authRedirects, m.handlerLatency)
	return m
}

func (m *RealtimeMetrics) SetConnectionState(v int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(v))
}

func (m *RealtimeMetrics) ObserveConnect(result string) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(result).Inc()
}

func (m *RealtimeMetrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnectsScheduled.Inc()
}

func (m *RealtimeMetrics) ObserveFrame(kind, result string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.frames.WithLabelValues(kind, result).Inc()
}

func (m *RealtimeMetrics) AuthRedirect() {
	if m == nil {
		return
	}
	m.authRedirects.Inc()
}

func (m *RealtimeMetrics) ObserveHandlerLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerLatency.WithLabelValues(kind).Observe(seconds)
}
