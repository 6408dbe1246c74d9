package domain

import (
	"context"
)

// EventProducer publishes serialized events to a broker topic.
type EventProducer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}
