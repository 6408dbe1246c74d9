package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BrokerRedis = "redis"
	BrokerKafka = "kafka"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	AppURL      string `env:"APP_URL"`
	Port        string `env:"PORT" default:"8000"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	Broker        string `env:"BROKER" default:"redis"`
	RedisURL      string `env:"REDIS_URL"`
	KafkaBrokers  string `env:"KAFKA_BROKERS"`
	ConsumerGroup string `env:"CONSUMER_GROUP" default:"notifications"`

	CrawlInterval     time.Duration `env:"CRAWL_INTERVAL" default:"5m"`
	CrawlConcurrency  int           `env:"CRAWL_CONCURRENCY" default:"5"`
	CrawlMaxAttempts  int           `env:"CRAWL_MAX_ATTEMPTS" default:"3"`
	CrawlRetryBackoff time.Duration `env:"CRAWL_RETRY_BACKOFF" default:"0s"`
	FetchTimeout      time.Duration `env:"FETCH_TIMEOUT" default:"30s"`
	IngestBuffer      int           `env:"INGEST_BUFFER" default:"10"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	WSRatePerSecond         float64 `env:"WS_RATE_PER_SECOND" default:"5"`
	WSRateBurst             int     `env:"WS_RATE_BURST" default:"10"`

	PipelineErrorDelay time.Duration `env:"PIPELINE_ERROR_DELAY" default:"0s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// KafkaBrokerList splits KAFKA_BROKERS on commas, dropping blanks.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"JWT_SECRET", cfg.JWTSecret},
	}
	switch cfg.Broker {
	case BrokerRedis:
		required = append(required, struct{ name, value string }{"REDIS_URL", cfg.RedisURL})
	case BrokerKafka:
		required = append(required, struct{ name, value string }{"KAFKA_BROKERS", strings.Join(cfg.KafkaBrokerList(), ",")})
	default:
		return fmt.Errorf("BROKER must be %q or %q, got %q", BrokerRedis, BrokerKafka, cfg.Broker)
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.CrawlInterval <= 0 {
		return errors.New("CRAWL_INTERVAL must be positive")
	}
	if cfg.CrawlConcurrency < 1 {
		return errors.New("CRAWL_CONCURRENCY must be at least 1")
	}
	if cfg.CrawlMaxAttempts < 1 {
		return errors.New("CRAWL_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.IngestBuffer < 1 {
		return errors.New("INGEST_BUFFER must be at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}

	return nil
}
