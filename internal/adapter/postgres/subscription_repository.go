package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/newspulse/internal/domain"
)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.SubscriptionRepository = (*SubscriptionRepo)(nil)

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

const listSubscriptionsByFeed = `-- name: ListSubscriptionsByFeed
SELECT feed_id, user_id FROM subscriptions WHERE feed_id = $1 ORDER BY user_id`

func (r *SubscriptionRepo) ListByFeed(ctx context.Context, feedID uuid.UUID) ([]domain.Subscription, error) {
	rows, err := r.pool.Query(ctx, listSubscriptionsByFeed, feedID)
	if err != nil {
		return nil, domain.NewStorageError("list subscriptions", err)
	}

	subs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Subscription])
	if err != nil {
		return nil, domain.NewStorageError("list subscriptions", err)
	}
	return subs, nil
}

const createSubscription = `-- name: CreateSubscription
INSERT INTO subscriptions (feed_id, user_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`

// Create subscribes a user to a feed. Subscribing twice is a no-op.
func (r *SubscriptionRepo) Create(ctx context.Context, sub domain.Subscription) error {
	if _, err := r.pool.Exec(ctx, createSubscription, sub.FeedID, sub.UserID); err != nil {
		return domain.NewStorageError("create subscription", err)
	}
	return nil
}
