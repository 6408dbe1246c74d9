// Package broker selects and opens the configured event broker.
package broker

import (
	"context"
	"fmt"

	"github.com/pscheid92/newspulse/internal/adapter/kafka"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/adapter/redis"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/pipeline"
	"github.com/pscheid92/newspulse/internal/platform/config"
	goredis "github.com/redis/go-redis/v9"
)

// Broker is an open connection to the configured broker.
type Broker struct {
	kind     string
	producer domain.EventProducer
	ping     func(ctx context.Context) error
	closers  []func() error

	rdb          *goredis.Client
	kafkaBrokers []string
}

func Open(ctx context.Context, cfg *config.Config, m *metrics.BrokerMetrics) (*Broker, error) {
	switch cfg.Broker {
	case config.BrokerRedis:
		rdb, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewCircuitBreakerHook(redis.DefaultBreakerSettings(), m))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		producer := redis.NewStreamProducer(rdb, m)
		return &Broker{
			kind:     cfg.Broker,
			producer: producer,
			ping:     producer.Ping,
			closers:  []func() error{rdb.Close},
			rdb:      rdb,
		}, nil

	case config.BrokerKafka:
		brokers := cfg.KafkaBrokerList()
		producer := kafka.NewProducer(brokers, m)
		return &Broker{
			kind:         cfg.Broker,
			producer:     producer,
			ping:         producer.Ping,
			closers:      []func() error{producer.Close},
			kafkaBrokers: brokers,
		}, nil

	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}

func (b *Broker) Kind() string {
	return b.kind
}

func (b *Broker) Producer() domain.EventProducer {
	return b.producer
}

// Consumer joins group on topic. member names this process within the group.
func (b *Broker) Consumer(ctx context.Context, topic, group, member string) (pipeline.Consumer, error) {
	if b.rdb != nil {
		return redis.NewStreamConsumer(ctx, b.rdb, topic, group, member)
	}
	c := kafka.NewConsumer(b.kafkaBrokers, topic, group)
	b.closers = append(b.closers, c.Close)
	return c, nil
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases consumers first and the shared connection last.
func (b *Broker) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
