// Package notify forwards newly created content to subscribers' live sessions.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/samber/lo"
)

// NotificationProcessor handles content_created payloads. Fan-out is best-effort:
// a failed delivery to one subscriber is logged and the remaining subscribers are
// still attempted.
type NotificationProcessor struct {
	subscriptions domain.SubscriptionRepository
	sessions      domain.SessionSender
}

func NewNotificationProcessor(subscriptions domain.SubscriptionRepository, sessions domain.SessionSender) *NotificationProcessor {
	return &NotificationProcessor{subscriptions: subscriptions, sessions: sessions}
}

// Process forwards payload unchanged to every subscriber of the item's feed. It fails
// only when payload is not a content item or the subscribers cannot be listed.
func (p *NotificationProcessor) Process(ctx context.Context, payload string) error {
	var item domain.ContentItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return domain.NewSerializationError("decode content item", err)
	}

	subs, err := p.subscriptions.ListByFeed(ctx, item.FeedID)
	if err != nil {
		return fmt.Errorf("failed to list subscribers of feed %s: %w", item.FeedID, err)
	}
	if len(subs) == 0 {
		slog.DebugContext(ctx, "No subscribers for content", "content_id", item.ID, "feed_id", item.FeedID)
		return nil
	}

	recipients := lo.Uniq(lo.Map(subs, func(s domain.Subscription, _ int) string {
		return s.UserID.String()
	}))

	message := []byte(payload)
	var failures []error
	for _, userID := range recipients {
		if err := p.sessions.Send(ctx, userID, message); err != nil {
			slog.WarnContext(ctx, "Failed to deliver notification", "user_id", userID, "content_id", item.ID, "error", err)
			failures = append(failures, fmt.Errorf("user %s: %w", userID, err))
		}
	}

	if len(failures) > 0 {
		slog.WarnContext(ctx, "Notification fan-out incomplete",
			"content_id", item.ID,
			"feed_id", item.FeedID,
			"recipients", len(recipients),
			"failed", len(failures),
			"error", errors.Join(failures...),
		)
		return nil
	}

	slog.DebugContext(ctx, "Notification fan-out complete", "content_id", item.ID, "feed_id", item.FeedID, "recipients", len(recipients))
	return nil
}
