package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics holds Prometheus metrics for the ingest cycle.
type IngestMetrics struct {
	Cycles        prometheus.Counter
	ItemsCreated  prometheus.Counter
	Duplicates    prometheus.Counter
	Failures      *prometheus.CounterVec
	CycleDuration prometheus.Histogram
}

// NewIngestMetrics creates and registers ingest metrics on the given registry.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "cycles_total",
			Help:      "Total number of ingest cycles started.",
		}),
		ItemsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "items_created_total",
			Help:      "Total number of new content items persisted.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duplicates_total",
			Help:      "Total number of content items skipped as already stored.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Total number of per-item ingest failures by stage.",
		}, []string{"stage"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full ingest cycle in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	reg.MustRegister(m.Cycles, m.ItemsCreated, m.Duplicates, m.Failures, m.CycleDuration)
	return m
}
