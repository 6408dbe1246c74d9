package kafka

import (
	"context"

	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads one topic as a member of a consumer group. Offsets are
// committed when a message is read, so delivery is at most once.
type Consumer struct {
	reader messageReader
	topic  string
}

func NewConsumer(brokers []string, topic, group string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, topic: topic}
}

func (c *Consumer) Consume(ctx context.Context) (string, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", domain.NewBrokerError("consume "+c.topic, err)
	}
	return string(msg.Value), nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
