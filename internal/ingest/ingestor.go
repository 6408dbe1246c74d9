package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
)

// DefaultBufferSize is the number of crawled batches that may wait for storage
// before the crawler is suspended.
const DefaultBufferSize = 10

// Scraper streams parsed feed batches into sink and returns once all feeds are done.
type Scraper interface {
	ScrapAll(ctx context.Context, feeds []domain.Feed, sink chan<- []domain.ContentItem) error
}

// Report summarises one ingest cycle.
type Report struct {
	Feeds      int
	Created    int
	Duplicates int
	Failed     int
}

// Ingestor is the single writer of crawled content into storage and onto the
// content_created topic. Items are handled strictly one after another.
type Ingestor struct {
	feeds      domain.FeedRepository
	content    domain.ContentRepository
	producer   domain.EventProducer
	scraper    Scraper
	clock      clockwork.Clock
	metrics    *metrics.IngestMetrics
	bufferSize int
}

func NewIngestor(feeds domain.FeedRepository, content domain.ContentRepository, producer domain.EventProducer, scraper Scraper, clock clockwork.Clock, m *metrics.IngestMetrics, bufferSize int) *Ingestor {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Ingestor{
		feeds:      feeds,
		content:    content,
		producer:   producer,
		scraper:    scraper,
		clock:      clock,
		metrics:    m,
		bufferSize: bufferSize,
	}
}

// Ingest runs one crawl over all known feeds and stores what is new. Every failure is
// logged here; nothing is returned to the caller except the cycle's Report.
func (i *Ingestor) Ingest(ctx context.Context) Report {
	start := i.clock.Now()
	i.metrics.Cycles.Inc()
	defer func() {
		i.metrics.CycleDuration.Observe(i.clock.Since(start).Seconds())
	}()

	var report Report

	feeds, err := i.feeds.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list feeds, skipping ingest", "error", err)
		return report
	}
	report.Feeds = len(feeds)

	batches := make(chan []domain.ContentItem, i.bufferSize)
	go func() {
		defer close(batches)
		if err := i.scraper.ScrapAll(ctx, feeds, batches); err != nil {
			slog.ErrorContext(ctx, "Crawl ended early", "error", err)
		}
	}()

	for batch := range batches {
		for _, item := range batch {
			switch i.insert(ctx, item) {
			case outcomeCreated:
				report.Created++
			case outcomeDuplicate:
				report.Duplicates++
			case outcomeFailed:
				report.Failed++
			}
		}
	}

	slog.InfoContext(ctx, "Ingest finished",
		"feeds", report.Feeds,
		"created", report.Created,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"duration", i.clock.Since(start),
	)
	return report
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeDuplicate
	outcomeFailed
)

func (i *Ingestor) insert(ctx context.Context, item domain.ContentItem) outcome {
	_, err := i.content.FindByFields(ctx, item.Title, item.FeedID)
	switch {
	case err == nil:
		i.metrics.Duplicates.Inc()
		slog.DebugContext(ctx, "Content already exists", "title", item.Title, "feed_id", item.FeedID)
		return outcomeDuplicate
	case !errors.Is(err, domain.ErrContentNotFound):
		i.metrics.Failures.WithLabelValues("lookup").Inc()
		slog.WarnContext(ctx, "Failed to look up content", "title", item.Title, "feed_id", item.FeedID, "error", err)
		return outcomeFailed
	}

	created, err := i.content.Create(ctx, item)
	if err != nil {
		i.metrics.Failures.WithLabelValues("create").Inc()
		slog.WarnContext(ctx, "Failed to store content", "title", item.Title, "feed_id", item.FeedID, "error", err)
		return outcomeFailed
	}
	i.metrics.ItemsCreated.Inc()
	slog.InfoContext(ctx, "Content stored", "content_id", created.ID, "title", created.Title, "feed_id", created.FeedID)

	payload, err := json.Marshal(created)
	if err != nil {
		i.metrics.Failures.WithLabelValues("encode").Inc()
		slog.WarnContext(ctx, "Failed to encode content event", "content_id", created.ID, "error", domain.NewSerializationError("encode content", err))
		return outcomeCreated
	}

	if err := i.producer.Publish(ctx, domain.TopicContentCreated, created.ID.String(), payload); err != nil {
		i.metrics.Failures.WithLabelValues("publish").Inc()
		slog.WarnContext(ctx, "Failed to publish content event", "content_id", created.ID, "topic", domain.TopicContentCreated, "error", err)
	}
	return outcomeCreated
}
