package redis

import (
	"context"

	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	fieldKey     = "key"
	fieldPayload = "payload"

	// defaultStreamMaxLen bounds each stream; trimming is approximate.
	defaultStreamMaxLen = 100_000
)

// StreamProducer publishes events by appending to the stream named after the topic.
type StreamProducer struct {
	rdb     *goredis.Client
	metrics *metrics.BrokerMetrics
	maxLen  int64
}

var _ domain.EventProducer = (*StreamProducer)(nil)

func NewStreamProducer(rdb *goredis.Client, m *metrics.BrokerMetrics) *StreamProducer {
	return &StreamProducer{rdb: rdb, metrics: m, maxLen: defaultStreamMaxLen}
}

func (p *StreamProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	err := p.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: topic,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{fieldKey: key, fieldPayload: payload},
	}).Err()
	if err != nil {
		p.metrics.Published.WithLabelValues(topic, "error").Inc()
		return domain.NewBrokerError("publish "+topic, err)
	}

	p.metrics.Published.WithLabelValues(topic, "success").Inc()
	return nil
}

// Ping reports whether Redis is reachable. Used by the readiness probe.
func (p *StreamProducer) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
