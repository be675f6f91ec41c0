// Package metrics exposes Prometheus instruments for the relay. All
// recording methods are safe on a nil *Metrics, so callers don't have
// to guard every observation site.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulselink"

// Metrics holds the relay's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated     prometheus.Counter
	sessionsReaped      prometheus.Counter
	messagesRelayed     prometheus.Counter
	connectionsRejected prometheus.Counter
	activeSessions      prometheus.Gauge
	activeConnections   prometheus.Gauge
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created.",
		}),
		sessionsReaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Total number of idle sessions reclaimed.",
		}),
		messagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Total number of vibration messages relayed.",
		}),
		connectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Total number of connections rejected by rate limiting.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently registered sessions.",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of currently open WebSocket connections.",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionCreated records a new session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
	m.activeSessions.Inc()
}

// SessionsReaped records a reaper sweep that removed n sessions.
func (m *Metrics) SessionsReaped(n int) {
	if m == nil {
		return
	}
	m.sessionsReaped.Add(float64(n))
	m.activeSessions.Sub(float64(n))
}

// MessageRelayed records one relayed vibration message.
func (m *Metrics) MessageRelayed() {
	if m == nil {
		return
	}
	m.messagesRelayed.Inc()
}

// ConnectionRejected records a rate-limited connection attempt.
func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

// ConnectionOpened records a successfully attached connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

// ConnectionClosed records the end of an attached connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}
