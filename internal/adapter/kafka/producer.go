// Package kafka implements the event broker on Kafka, as an alternative to the
// Redis Streams adapter.
package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

const breakerComponent = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events to Kafka. Messages with the same key land on the same
// partition, so events for one key keep their order. A circuit breaker rejects
// publishes after repeated write failures.
type Producer struct {
	writer  messageWriter
	brokers []string
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.BrokerMetrics
}

var _ domain.EventProducer = (*Producer)(nil)

func NewProducer(brokers []string, m *metrics.BrokerMetrics) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return newProducer(writer, brokers, m)
}

func newProducer(writer messageWriter, brokers []string, m *metrics.BrokerMetrics) *Producer {
	m.CircuitState.WithLabelValues(breakerComponent).Set(stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerComponent,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			m.CircuitStateChanges.WithLabelValues(name, to.String()).Inc()
			m.CircuitState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Producer{writer: writer, brokers: brokers, cb: cb, metrics: m}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: payload,
		})
	})
	if err != nil {
		p.metrics.Published.WithLabelValues(topic, "error").Inc()
		return domain.NewBrokerError("publish "+topic, err)
	}

	p.metrics.Published.WithLabelValues(topic, "success").Inc()
	return nil
}

// Ping dials the first reachable broker. Used by the readiness probe.
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return domain.NewBrokerError("ping", lastErr)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
