package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pscheid92/newspulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultBlock = 5 * time.Second

// StreamConsumer reads one stream as a member of a consumer group. Entries are
// acknowledged as soon as they are handed out, so delivery is at most once.
type StreamConsumer struct {
	rdb      *goredis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

// NewStreamConsumer joins (and if needed creates) the consumer group on stream.
// New groups start at the beginning of the stream.
func NewStreamConsumer(ctx context.Context, rdb *goredis.Client, stream, group, consumer string) (*StreamConsumer, error) {
	err := rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group %q on %q: %w", group, stream, err)
	}

	return &StreamConsumer{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    defaultBlock,
	}, nil
}

// Consume blocks until the next entry arrives and returns its payload.
// Empty block intervals are retried until ctx is done.
func (c *StreamConsumer) Consume(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		streams, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    c.block,
		}).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return "", domain.NewBrokerError("consume "+c.stream, err)
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				if err := c.rdb.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
					return "", domain.NewBrokerError("ack "+c.stream, err)
				}
				payload, ok := msg.Values[fieldPayload].(string)
				if !ok {
					return "", domain.NewSerializationError("decode stream entry",
						fmt.Errorf("entry %s has no %q field", msg.ID, fieldPayload))
				}
				return payload, nil
			}
		}
	}
}
