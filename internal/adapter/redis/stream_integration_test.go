package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestStream_PublishThenConsume(t *testing.T) {
	client, m := setupTestClient(t)
	ctx := context.Background()

	consumer, err := NewStreamConsumer(ctx, client, "content_created", "notifications", "c1")
	require.NoError(t, err)
	producer := NewStreamProducer(client, m)

	require.NoError(t, producer.Publish(ctx, "content_created", "k1", []byte(`{"id":"1"}`)))
	require.NoError(t, producer.Publish(ctx, "content_created", "k2", []byte(`{"id":"2"}`)))

	first, err := consumer.Consume(ctx)
	require.NoError(t, err)
	second, err := consumer.Consume(ctx)
	require.NoError(t, err)

	assert.Equal(t, `{"id":"1"}`, first)
	assert.Equal(t, `{"id":"2"}`, second)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Published.WithLabelValues("content_created", "success")))
}

func TestStream_ConsumerGroupCreationIsIdempotent(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	_, err := NewStreamConsumer(ctx, client, "content_created", "notifications", "c1")
	require.NoError(t, err)
	_, err = NewStreamConsumer(ctx, client, "content_created", "notifications", "c2")
	assert.NoError(t, err)
}

func TestStream_GroupMembersShareEntries(t *testing.T) {
	client, m := setupTestClient(t)
	ctx := context.Background()

	c1, err := NewStreamConsumer(ctx, client, "content_created", "notifications", "c1")
	require.NoError(t, err)
	c2, err := NewStreamConsumer(ctx, client, "content_created", "notifications", "c2")
	require.NoError(t, err)
	producer := NewStreamProducer(client, m)

	require.NoError(t, producer.Publish(ctx, "content_created", "k1", []byte("a")))
	require.NoError(t, producer.Publish(ctx, "content_created", "k2", []byte("b")))

	got1, err := c1.Consume(ctx)
	require.NoError(t, err)
	got2, err := c2.Consume(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, []string{got1, got2})
}

func TestStream_ConsumeStopsOnCancel(t *testing.T) {
	client, _ := setupTestClient(t)

	consumer, err := NewStreamConsumer(context.Background(), client, "content_created", "notifications", "c1")
	require.NoError(t, err)
	consumer.block = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = consumer.Consume(ctx)
	assert.Error(t, err)
}
