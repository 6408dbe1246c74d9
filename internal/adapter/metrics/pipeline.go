package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics holds Prometheus metrics for broker consume/process loops.
type PipelineMetrics struct {
	MessagesConsumed *prometheus.CounterVec
	ConsumeErrors    *prometheus.CounterVec
	ProcessErrors    *prometheus.CounterVec
	ProcessDuration  *prometheus.HistogramVec
}

// NewPipelineMetrics creates and registers pipeline metrics on the given registry.
// Every metric is labelled with the pipeline name.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		MessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "messages_consumed_total",
			Help:      "Total number of broker messages consumed.",
		}, []string{"pipeline"}),
		ConsumeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "consume_errors_total",
			Help:      "Total number of failed consume calls.",
		}, []string{"pipeline"}),
		ProcessErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "process_errors_total",
			Help:      "Total number of messages whose processing failed.",
		}, []string{"pipeline"}),
		ProcessDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "process_duration_seconds",
			Help:      "Time spent processing one message in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline"}),
	}

	reg.MustRegister(m.MessagesConsumed, m.ConsumeErrors, m.ProcessErrors, m.ProcessDuration)
	return m
}
