package broker

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnknownBroker(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Broker: "nats"}, metrics.NewBrokerMetrics(prometheus.NewRegistry()))
	assert.ErrorContains(t, err, `unknown broker "nats"`)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	cfg := &config.Config{Broker: config.BrokerRedis, RedisURL: "redis://127.0.0.1:1"}

	_, err := Open(context.Background(), cfg, metrics.NewBrokerMetrics(prometheus.NewRegistry()))
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestOpen_KafkaIsLazy(t *testing.T) {
	cfg := &config.Config{Broker: config.BrokerKafka, KafkaBrokers: "127.0.0.1:1"}

	b, err := Open(context.Background(), cfg, metrics.NewBrokerMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)

	assert.Equal(t, config.BrokerKafka, b.Kind())
	assert.NotNil(t, b.Producer())
	assert.NoError(t, b.Close())
}
