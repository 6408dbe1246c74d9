package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics holds Prometheus metrics for the session registry and live connections.
type SessionMetrics struct {
	ActiveSessions    prometheus.Gauge
	ActiveConnections prometheus.Gauge
	CommandQueueDepth prometheus.Gauge
	SwapMisses        prometheus.Counter
	UnknownSends      prometheus.Counter
	Deliveries        *prometheus.CounterVec
	Logins            *prometheus.CounterVec
	HeartbeatTimeouts prometheus.Counter
	RejectedUpgrades  *prometheus.CounterVec
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of sessions currently registered.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		CommandQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "command_queue_depth",
			Help:      "Number of commands waiting in the registry queue.",
		}),
		SwapMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "swap_misses_total",
			Help:      "Total number of swaps requested for a key that was not registered.",
		}),
		UnknownSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "unknown_sends_total",
			Help:      "Total number of sends addressed to a key with no live session.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts to live sessions by outcome.",
		}, []string{"outcome"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "logins_total",
			Help:      "Total number of login commands by outcome.",
		}, []string{"outcome"}),
		HeartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "heartbeat_timeouts_total",
			Help:      "Total number of connections closed for missing heartbeats.",
		}),
		RejectedUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_upgrades_total",
			Help:      "Total number of WebSocket upgrades rejected by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.ActiveSessions,
		m.ActiveConnections,
		m.CommandQueueDepth,
		m.SwapMisses,
		m.UnknownSends,
		m.Deliveries,
		m.Logins,
		m.HeartbeatTimeouts,
		m.RejectedUpgrades,
	)
	return m
}
