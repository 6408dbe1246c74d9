package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriptions struct {
	byFeed map[uuid.UUID][]domain.Subscription
	err    error
}

func (f *fakeSubscriptions) ListByFeed(_ context.Context, feedID uuid.UUID) ([]domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byFeed[feedID], nil
}

type inbox struct {
	mu       sync.Mutex
	messages []string
}

func (i *inbox) Deliver(message []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.messages = append(i.messages, string(message))
	return nil
}

func (i *inbox) received() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.messages...)
}

type flakySender struct {
	failFor map[string]error
	sent    []string
}

func (s *flakySender) Send(_ context.Context, key string, _ []byte) error {
	if err, ok := s.failFor[key]; ok {
		return err
	}
	s.sent = append(s.sent, key)
	return nil
}

func contentPayload(t *testing.T, feedID uuid.UUID) string {
	t.Helper()
	data, err := json.Marshal(domain.ContentItem{
		ID:          uuid.New(),
		Author:      "Jane",
		URL:         "https://example.com/post",
		Title:       "Post",
		PublishDate: domain.NewDate(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		FeedID:      feedID,
	})
	require.NoError(t, err)
	return string(data)
}

func TestProcess_DeliversToConnectedSubscriberOnly(t *testing.T) {
	ctx := context.Background()
	feedID := uuid.New()
	u1, u2 := uuid.New(), uuid.New()

	m := metrics.NewSessionMetrics(prometheus.NewRegistry())
	registry := session.NewRegistry(clockwork.NewRealClock(), m)
	t.Cleanup(registry.Stop)

	box := &inbox{}
	anon, err := registry.Connect(ctx, "", box)
	require.NoError(t, err)
	_, err = registry.Swap(ctx, anon, u1.String())
	require.NoError(t, err)

	subs := &fakeSubscriptions{byFeed: map[uuid.UUID][]domain.Subscription{
		feedID: {{FeedID: feedID, UserID: u1}, {FeedID: feedID, UserID: u2}},
	}}
	processor := NewNotificationProcessor(subs, registry)
	payload := contentPayload(t, feedID)

	require.NoError(t, processor.Process(ctx, payload))

	assert.Equal(t, []string{payload}, box.received(), "payload is forwarded verbatim")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownSends), "offline subscriber is only a warning")
}

func TestProcess_ContinuesAfterDeliveryFailure(t *testing.T) {
	feedID := uuid.New()
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	subs := &fakeSubscriptions{byFeed: map[uuid.UUID][]domain.Subscription{
		feedID: {{FeedID: feedID, UserID: u1}, {FeedID: feedID, UserID: u2}, {FeedID: feedID, UserID: u3}},
	}}
	sender := &flakySender{failFor: map[string]error{
		u1.String(): domain.NewDeliveryError("deliver", domain.ErrMailboxFull),
	}}

	err := NewNotificationProcessor(subs, sender).Process(context.Background(), contentPayload(t, feedID))

	require.NoError(t, err)
	assert.Equal(t, []string{u2.String(), u3.String()}, sender.sent)
}

func TestProcess_NoSubscribers(t *testing.T) {
	sender := &flakySender{}
	subs := &fakeSubscriptions{}

	err := NewNotificationProcessor(subs, sender).Process(context.Background(), contentPayload(t, uuid.New()))

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestProcess_MalformedPayload(t *testing.T) {
	sender := &flakySender{}
	processor := NewNotificationProcessor(&fakeSubscriptions{}, sender)

	for _, payload := range []string{"", "not json", `{"feed_id": 42}`, `{"publish_date": "yesterday"}`} {
		err := processor.Process(context.Background(), payload)
		require.Error(t, err, payload)
		assert.True(t, domain.IsKind(err, domain.KindSerialization), payload)
	}
	assert.Empty(t, sender.sent)
}

func TestProcess_SubscriptionLookupFails(t *testing.T) {
	subs := &fakeSubscriptions{err: domain.NewStorageError("list subscriptions", errors.New("db down"))}

	err := NewNotificationProcessor(subs, &flakySender{}).Process(context.Background(), contentPayload(t, uuid.New()))

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindStorage))
}
