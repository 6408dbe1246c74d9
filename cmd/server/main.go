package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/newspulse/internal/adapter/auth"
	"github.com/pscheid92/newspulse/internal/adapter/broker"
	"github.com/pscheid92/newspulse/internal/adapter/httpserver"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/adapter/postgres"
	"github.com/pscheid92/newspulse/internal/crawler"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/ingest"
	"github.com/pscheid92/newspulse/internal/notify"
	"github.com/pscheid92/newspulse/internal/pipeline"
	"github.com/pscheid92/newspulse/internal/platform/config"
	"github.com/pscheid92/newspulse/internal/platform/logging"
	"github.com/pscheid92/newspulse/internal/session"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracer := postgres.NewQueryTracer(clock, metrics.NewStorageMetrics(reg))
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupBroker(cfg *config.Config, reg prometheus.Registerer) *broker.Broker {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := broker.Open(ctx, cfg, metrics.NewBrokerMetrics(reg))
	if err != nil {
		slog.Error("Failed to open broker", "broker", cfg.Broker, "error", err)
		os.Exit(1)
	}
	return b
}

func setupNotificationPipeline(ctx context.Context, cfg *config.Config, b *broker.Broker, subscriptions domain.SubscriptionRepository, registry *session.Registry, clock clockwork.Clock, reg prometheus.Registerer) *pipeline.Driver {
	consumer, err := b.Consumer(ctx, domain.TopicContentCreated, cfg.ConsumerGroup, memberName())
	if err != nil {
		slog.Error("Failed to join consumer group", "group", cfg.ConsumerGroup, "error", err)
		os.Exit(1)
	}

	processor := notify.NewNotificationProcessor(subscriptions, registry)
	return pipeline.NewDriver("notifications", consumer, processor, clock, metrics.NewPipelineMetrics(reg), cfg.PipelineErrorDelay)
}

func setupScheduler(cfg *config.Config, pool *pgxpool.Pool, producer domain.EventProducer, clock clockwork.Clock, reg prometheus.Registerer) *ingest.Scheduler {
	c := crawler.New(crawler.NewHTTPFetcher(cfg.FetchTimeout), clock, metrics.NewCrawlerMetrics(reg), crawler.Options{
		Concurrency:  cfg.CrawlConcurrency,
		MaxAttempts:  cfg.CrawlMaxAttempts,
		RetryBackoff: cfg.CrawlRetryBackoff,
	})

	ingestor := ingest.NewIngestor(
		postgres.NewFeedRepo(pool),
		postgres.NewContentRepo(pool),
		producer,
		c,
		clock,
		metrics.NewIngestMetrics(reg),
		cfg.IngestBuffer,
	)
	return ingest.NewScheduler(ingestor, clock, cfg.CrawlInterval)
}

// memberName identifies this process within the consumer group.
func memberName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "newspulse"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}

func runGracefulShutdown(srv *httpserver.Server, cancelWorkers context.CancelFunc, workers *sync.WaitGroup, registry *session.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelWorkers()
		workers.Wait()
		registry.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "broker", cfg.Broker)

	reg := metrics.NewRegistry()

	pool := setupDB(cfg, clock, reg)
	defer pool.Close()

	b := setupBroker(cfg, reg)
	defer func() {
		if err := b.Close(); err != nil {
			slog.Error("Failed to close broker", "error", err)
		}
	}()

	jwtService, err := auth.NewJWTService(cfg.JWTSecret, clock)
	if err != nil {
		slog.Error("Failed to create auth service", "error", err)
		os.Exit(1)
	}

	sessionMetrics := metrics.NewSessionMetrics(reg)
	registry := session.NewRegistry(clock, sessionMetrics)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	driver := setupNotificationPipeline(workerCtx, cfg, b, postgres.NewSubscriptionRepo(pool), registry, clock, reg)
	scheduler := setupScheduler(cfg, pool, b.Producer(), clock, reg)

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		driver.Run(workerCtx)
	}()
	go func() {
		defer workers.Done()
		scheduler.Run(workerCtx)
	}()

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "broker", Check: b.Ping},
	}
	srv := httpserver.NewServer(cfg, registry, jwtService, clock, httpserver.Metrics{
		HTTP:    metrics.NewHTTPMetrics(reg),
		Session: sessionMetrics,
		Handler: metrics.Handler(reg),
	}, healthChecks)

	done := runGracefulShutdown(srv, cancelWorkers, &workers, registry)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
