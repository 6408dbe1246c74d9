package metrics

import "github.com/prometheus/client_golang/prometheus"

// CrawlerMetrics holds Prometheus metrics for feed crawling.
type CrawlerMetrics struct {
	FetchAttempts  *prometheus.CounterVec
	FeedsAbandoned prometheus.Counter
	ItemsParsed    prometheus.Counter
	InFlight       prometheus.Gauge
}

// NewCrawlerMetrics creates and registers crawler metrics on the given registry.
func NewCrawlerMetrics(reg prometheus.Registerer) *CrawlerMetrics {
	m := &CrawlerMetrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "attempts_total",
			Help:      "Total number of feed fetch+parse attempts by outcome.",
		}, []string{"outcome"}),
		FeedsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "feeds_abandoned_total",
			Help:      "Total number of feeds abandoned after exhausting all attempts.",
		}),
		ItemsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "items_parsed_total",
			Help:      "Total number of content items parsed from feeds.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "in_flight_feeds",
			Help:      "Number of feeds currently holding a concurrency permit.",
		}),
	}

	reg.MustRegister(m.FetchAttempts, m.FeedsAbandoned, m.ItemsParsed, m.InFlight)
	return m
}
