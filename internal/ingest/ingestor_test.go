package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/crawler"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedOneDoc = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>One</title>
  <item><title>Alpha</title><link>https://one.example.com/alpha</link></item>
  <item><title>Beta</title><link>https://one.example.com/beta</link></item>
</channel></rss>`

const feedTwoDoc = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Two</title>
  <item><title>Gamma</title><link>https://two.example.com/gamma</link></item>
</channel></rss>`

type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	doc, ok := f[url]
	if !ok {
		return nil, domain.NewFetchError("fetch feed", errors.New("no such feed"))
	}
	return []byte(doc), nil
}

// countingFetcher serves the same single-entry document for every URL.
type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	return []byte(feedTwoDoc), nil
}

type fakeFeedRepo struct {
	feeds []domain.Feed
	err   error
}

func (r *fakeFeedRepo) List(context.Context) ([]domain.Feed, error) {
	return r.feeds, r.err
}

type contentKey struct {
	title  string
	feedID uuid.UUID
}

type fakeContentRepo struct {
	mu        sync.Mutex
	items     map[contentKey]domain.ContentItem
	createErr func(item domain.ContentItem) error
	lookupErr error
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{items: make(map[contentKey]domain.ContentItem)}
}

func (r *fakeContentRepo) FindByFields(_ context.Context, title string, feedID uuid.UUID) (*domain.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	item, ok := r.items[contentKey{title, feedID}]
	if !ok {
		return nil, domain.ErrContentNotFound
	}
	return &item, nil
}

func (r *fakeContentRepo) Create(_ context.Context, item domain.ContentItem) (*domain.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		if err := r.createErr(item); err != nil {
			return nil, err
		}
	}
	r.items[contentKey{item.Title, item.FeedID}] = item
	return &item, nil
}

func (r *fakeContentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type published struct {
	topic   string
	key     string
	payload []byte
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic: topic, key: key, payload: payload})
	return nil
}

type fixture struct {
	ingestor *Ingestor
	feeds    *fakeFeedRepo
	content  *fakeContentRepo
	producer *fakeProducer
	metrics  *metrics.IngestMetrics
	feedOne  domain.Feed
	feedTwo  domain.Feed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	feedOne := domain.Feed{ID: uuid.New(), Title: "One", URL: "https://one.example.com/rss"}
	feedTwo := domain.Feed{ID: uuid.New(), Title: "Two", URL: "https://two.example.com/rss"}
	fetcher := staticFetcher{feedOne.URL: feedOneDoc, feedTwo.URL: feedTwoDoc}

	f := &fixture{
		feeds:    &fakeFeedRepo{feeds: []domain.Feed{feedOne, feedTwo}},
		content:  newFakeContentRepo(),
		producer: &fakeProducer{},
		metrics:  metrics.NewIngestMetrics(reg),
		feedOne:  feedOne,
		feedTwo:  feedTwo,
	}
	scraper := crawler.New(fetcher, clock, metrics.NewCrawlerMetrics(reg), crawler.Options{})
	f.ingestor = NewIngestor(f.feeds, f.content, f.producer, scraper, clock, f.metrics, 0)
	return f
}

func TestIngest_PersistsAndPublishesNewItems(t *testing.T) {
	f := newFixture(t)

	report := f.ingestor.Ingest(context.Background())

	assert.Equal(t, Report{Feeds: 2, Created: 3}, report)
	assert.Equal(t, 3, f.content.count())
	require.Len(t, f.producer.messages, 3)

	titles := map[string]uuid.UUID{}
	for _, msg := range f.producer.messages {
		assert.Equal(t, domain.TopicContentCreated, msg.topic)

		var item domain.ContentItem
		require.NoError(t, json.Unmarshal(msg.payload, &item))
		assert.Equal(t, item.ID.String(), msg.key)
		assert.Equal(t, "2024-06-01", item.PublishDate.String())
		titles[item.Title] = item.FeedID
	}
	assert.Equal(t, map[string]uuid.UUID{
		"Alpha": f.feedOne.ID,
		"Beta":  f.feedOne.ID,
		"Gamma": f.feedTwo.ID,
	}, titles)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ItemsCreated))
}

func TestIngest_SecondRunIsNoOp(t *testing.T) {
	f := newFixture(t)

	f.ingestor.Ingest(context.Background())
	report := f.ingestor.Ingest(context.Background())

	assert.Equal(t, Report{Feeds: 2, Duplicates: 3}, report)
	assert.Equal(t, 3, f.content.count())
	assert.Len(t, f.producer.messages, 3, "duplicates must not publish")
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Duplicates))
}

func TestIngest_StorageFailureSkipsOnlyThatItem(t *testing.T) {
	f := newFixture(t)
	f.content.createErr = func(item domain.ContentItem) error {
		if item.Title == "Beta" {
			return domain.NewStorageError("create content", errors.New("disk full"))
		}
		return nil
	}

	report := f.ingestor.Ingest(context.Background())

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, f.producer.messages, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues("create")))
}

func TestIngest_LookupFailureSkipsItem(t *testing.T) {
	f := newFixture(t)
	f.content.lookupErr = errors.New("connection reset")

	report := f.ingestor.Ingest(context.Background())

	assert.Equal(t, 3, report.Failed)
	assert.Zero(t, f.content.count())
	assert.Empty(t, f.producer.messages)
}

func TestIngest_PublishFailureKeepsStoredItem(t *testing.T) {
	f := newFixture(t)
	f.producer.err = domain.NewBrokerError("publish", errors.New("broker down"))

	report := f.ingestor.Ingest(context.Background())

	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 3, f.content.count())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Failures.WithLabelValues("publish")))
}

func TestIngest_FeedListFailure(t *testing.T) {
	f := newFixture(t)
	f.feeds.err = domain.NewStorageError("list feeds", errors.New("timeout"))

	report := f.ingestor.Ingest(context.Background())

	assert.Equal(t, Report{}, report)
	assert.Empty(t, f.producer.messages)
}

func TestIngest_NoFeeds(t *testing.T) {
	f := newFixture(t)
	f.feeds.feeds = nil

	report := f.ingestor.Ingest(context.Background())

	assert.Equal(t, Report{}, report)
}

func TestIngest_SlowStorageSuspendsCrawlerOnceBufferIsFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	clock := clockwork.NewRealClock()

	feeds := make([]domain.Feed, 20)
	for n := range feeds {
		feeds[n] = domain.Feed{ID: uuid.New(), URL: fmt.Sprintf("https://feed-%d.example.com/rss", n)}
	}

	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	content := newFakeContentRepo()
	content.createErr = func(domain.ContentItem) error {
		once.Do(func() { close(entered) })
		<-gate
		return nil
	}

	fetcher := &countingFetcher{}
	scraper := crawler.New(fetcher, clock, metrics.NewCrawlerMetrics(reg), crawler.Options{Concurrency: 1})
	ingestor := NewIngestor(&fakeFeedRepo{feeds: feeds}, content, &fakeProducer{}, scraper, clock, metrics.NewIngestMetrics(reg), 0)

	done := make(chan Report, 1)
	go func() { done <- ingestor.Ingest(context.Background()) }()

	<-entered
	// One batch is being stored, DefaultBufferSize batches wait in the channel and
	// one more feed holds the only permit while blocked on the send.
	stalledAt := int32(1 + DefaultBufferSize + 1)
	require.Eventually(t, func() bool { return fetcher.calls.Load() == stalledAt }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return fetcher.calls.Load() > stalledAt }, 200*time.Millisecond, 10*time.Millisecond)

	close(gate)

	select {
	case report := <-done:
		assert.Equal(t, Report{Feeds: 20, Created: 20}, report)
		assert.Equal(t, int32(20), fetcher.calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("ingest did not finish after storage resumed")
	}
}
