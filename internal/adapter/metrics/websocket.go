package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for the snapshot fan-out hub.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	MessagesPublished   prometheus.Counter
	SlowClientsEvicted  prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_published_total",
			Help:      "Total number of snapshot messages queued to clients.",
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of clients disconnected because their send buffer was full.",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_rejected_total",
			Help:      "Total number of WebSocket registrations refused, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveConnections, m.MessagesPublished, m.SlowClientsEvicted, m.ConnectionsRejected)
	return m
}

// ClientConnected, ClientDisconnected, SnapshotQueued, SlowClientEvicted and
// ConnectionRejected let the hub record events without importing prometheus.

func (m *WebSocketMetrics) ClientConnected() {
	m.ActiveConnections.Inc()
}

func (m *WebSocketMetrics) ClientDisconnected() {
	m.ActiveConnections.Dec()
}

func (m *WebSocketMetrics) SnapshotQueued() {
	m.MessagesPublished.Inc()
}

func (m *WebSocketMetrics) SlowClientEvicted() {
	m.SlowClientsEvicted.Inc()
}

func (m *WebSocketMetrics) ConnectionRejected(reason string) {
	m.ConnectionsRejected.WithLabelValues(reason).Inc()
}
