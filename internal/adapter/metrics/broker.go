package metrics

import "github.com/prometheus/client_golang/prometheus"

// BrokerMetrics holds Prometheus metrics for the message broker adapters.
type BrokerMetrics struct {
	Published           *prometheus.CounterVec
	CircuitState        *prometheus.GaugeVec
	CircuitStateChanges *prometheus.CounterVec
}

// NewBrokerMetrics creates and registers broker metrics on the given registry.
func NewBrokerMetrics(reg prometheus.Registerer) *BrokerMetrics {
	m := &BrokerMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "published_total",
			Help:      "Total number of publish calls by topic and outcome.",
		}, []string{"topic", "outcome"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"component"}),
		CircuitStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "circuit_state_changes_total",
			Help:      "Total number of circuit breaker state transitions.",
		}, []string{"component", "to"}),
	}

	reg.MustRegister(m.Published, m.CircuitState, m.CircuitStateChanges)
	return m
}
