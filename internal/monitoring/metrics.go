package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bridge layer. It implements
// bridge.Stats.
type Metrics struct {
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	SessionsActive   *prometheus.GaugeVec
	WSConnections    prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a metrics collector registered on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry
// to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framewright_bridge_messages_sent_total",
				Help: "Commands sent to guests",
			},
			[]string{"bridge", "type"},
		),
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framewright_bridge_messages_received_total",
				Help: "Valid events received from guests",
			},
			[]string{"bridge", "type"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framewright_bridge_messages_dropped_total",
				Help: "Inbound messages dropped as malformed or out-of-vocabulary",
			},
			[]string{"bridge"},
		),
		SessionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "framewright_bridge_sessions_active",
				Help: "Live bridge sessions",
			},
			[]string{"bridge"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "framewright_ws_connections",
				Help: "Open guest WebSocket connections",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framewright_http_requests_total",
				Help: "HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "framewright_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration)
}

// MessageSent implements bridge.Stats.
func (m *Metrics) MessageSent(bridge, msgType string) {
	m.MessagesSent.WithLabelValues(bridge, msgType).Inc()
}

// MessageReceived implements bridge.Stats.
func (m *Metrics) MessageReceived(bridge, msgType string) {
	m.MessagesReceived.WithLabelValues(bridge, msgType).Inc()
}

// MessageDropped implements bridge.Stats.
func (m *Metrics) MessageDropped(bridge string) {
	m.MessagesDropped.WithLabelValues(bridge).Inc()
}

// SessionOpened records a new bridge session.
func (m *Metrics) SessionOpened(bridge string) {
	m.SessionsActive.WithLabelValues(bridge).Inc()
}

// SessionClosed records a disposed bridge session.
func (m *Metrics) SessionClosed(bridge string) {
	m.SessionsActive.WithLabelValues(bridge).Dec()
}
