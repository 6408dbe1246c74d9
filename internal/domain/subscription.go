package domain

import (
	"context"

	"github.com/google/uuid"
)

// Subscription entitles a user to notifications about new content of a feed.
// The (FeedID, UserID) pair is its identity.
type Subscription struct {
	FeedID uuid.UUID `json:"feed_id"`
	UserID uuid.UUID `json:"user_id"`
}

type SubscriptionRepository interface {
	ListByFeed(ctx context.Context, feedID uuid.UUID) ([]Subscription, error)
}
