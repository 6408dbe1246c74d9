package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConcurrency = 5
	DefaultMaxAttempts = 3
)

// Fetcher retrieves the raw document behind a feed URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	// Concurrency caps the number of feeds fetched at once. Defaults to DefaultConcurrency.
	Concurrency int
	// MaxAttempts bounds fetch+parse attempts per feed and crawl. Defaults to DefaultMaxAttempts.
	MaxAttempts int
	// RetryBackoff is the initial pause between attempts. Zero retries immediately;
	// a positive value grows exponentially from there.
	RetryBackoff time.Duration
}

type Crawler struct {
	fetcher      Fetcher
	clock        clockwork.Clock
	metrics      *metrics.CrawlerMetrics
	permits      *semaphore.Weighted
	maxAttempts  int
	retryBackoff time.Duration
}

func New(fetcher Fetcher, clock clockwork.Clock, m *metrics.CrawlerMetrics, opts Options) *Crawler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Crawler{
		fetcher:      fetcher,
		clock:        clock,
		metrics:      m,
		permits:      semaphore.NewWeighted(int64(opts.Concurrency)),
		maxAttempts:  opts.MaxAttempts,
		retryBackoff: opts.RetryBackoff,
	}
}

// ScrapAll crawls every feed and sends each successfully parsed feed's items to sink,
// in completion order. Feeds that exhaust their attempts are logged and skipped; they
// never fail the batch. ScrapAll returns once every started feed has finished, and
// only returns an error if ctx ends before all feeds could be started.
func (c *Crawler) ScrapAll(ctx context.Context, feeds []domain.Feed, sink chan<- []domain.ContentItem) error {
	var (
		wg     sync.WaitGroup
		runErr error
	)

	for _, feed := range feeds {
		if err := c.permits.Acquire(ctx, 1); err != nil {
			runErr = fmt.Errorf("crawl interrupted before feed %s: %w", feed.ID, err)
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.permits.Release(1)
			c.crawlFeed(ctx, feed, sink)
		}()
	}

	wg.Wait()
	return runErr
}

// crawlFeed holds its permit until the items are handed off, so a full sink stalls the
// whole crawl rather than piling parsed batches up in memory.
func (c *Crawler) crawlFeed(ctx context.Context, feed domain.Feed, sink chan<- []domain.ContentItem) {
	c.metrics.InFlight.Inc()
	defer c.metrics.InFlight.Dec()

	items, err := c.scrapWithRetry(ctx, feed)
	if err != nil {
		c.metrics.FeedsAbandoned.Inc()
		slog.WarnContext(ctx, "Feed abandoned for this crawl", "feed_id", feed.ID, "url", feed.URL, "error", err)
		return
	}
	c.metrics.ItemsParsed.Add(float64(len(items)))

	select {
	case sink <- items:
		slog.DebugContext(ctx, "Feed crawled", "feed_id", feed.ID, "items", len(items))
	case <-ctx.Done():
		slog.WarnContext(ctx, "Dropped parsed items, receiver gone", "feed_id", feed.ID, "items", len(items), "error", ctx.Err())
	}
}

func (c *Crawler) scrapWithRetry(ctx context.Context, feed domain.Feed) ([]domain.ContentItem, error) {
	delays := c.newBackOff()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		items, err := c.scrap(ctx, feed)
		if err == nil {
			c.metrics.FetchAttempts.WithLabelValues("success").Inc()
			return items, nil
		}
		lastErr = err
		c.metrics.FetchAttempts.WithLabelValues(attemptOutcome(err)).Inc()
		slog.DebugContext(ctx, "Feed attempt failed", "feed_id", feed.ID, "attempt", attempt, "max_attempts", c.maxAttempts, "error", err)

		if attempt == c.maxAttempts {
			break
		}
		if err := c.pause(ctx, delays.NextBackOff()); err != nil {
			return nil, fmt.Errorf("retry interrupted after %d attempts: %w", attempt, err)
		}
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Crawler) scrap(ctx context.Context, feed domain.Feed) ([]domain.ContentItem, error) {
	data, err := c.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return nil, err
	}
	return parseDocument(data, feed, c.clock.Now())
}

func (c *Crawler) newBackOff() backoff.BackOff {
	if c.retryBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Crawler) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func attemptOutcome(err error) string {
	switch {
	case domain.IsKind(err, domain.KindParse):
		return "parse_error"
	case domain.IsKind(err, domain.KindFetch):
		return "fetch_error"
	default:
		return "error"
	}
}
