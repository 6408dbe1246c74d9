package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/newspulse/internal/domain"
)

type FeedRepo struct {
	pool *pgxpool.Pool
}

var _ domain.FeedRepository = (*FeedRepo)(nil)

func NewFeedRepo(pool *pgxpool.Pool) *FeedRepo {
	return &FeedRepo{pool: pool}
}

const listFeeds = `-- name: ListFeeds
SELECT id, author, title, url FROM feeds ORDER BY title, url`

func (r *FeedRepo) List(ctx context.Context) ([]domain.Feed, error) {
	rows, err := r.pool.Query(ctx, listFeeds)
	if err != nil {
		return nil, domain.NewStorageError("list feeds", err)
	}

	feeds, err := pgx.CollectRows(rows, scanFeed)
	if err != nil {
		return nil, domain.NewStorageError("list feeds", err)
	}
	return feeds, nil
}

const getFeed = `-- name: GetFeed
SELECT id, author, title, url FROM feeds WHERE id = $1`

func (r *FeedRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Feed, error) {
	rows, err := r.pool.Query(ctx, getFeed, id)
	if err != nil {
		return nil, domain.NewStorageError("get feed", err)
	}

	feed, err := pgx.CollectExactlyOneRow(rows, scanFeed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFeedNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get feed", err)
	}
	return &feed, nil
}

const upsertFeed = `-- name: UpsertFeed
INSERT INTO feeds (id, author, title, url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO UPDATE SET author = EXCLUDED.author, title = EXCLUDED.title
RETURNING id, author, title, url`

// Create registers a feed. Registering an already known URL updates its
// metadata and returns the existing row.
func (r *FeedRepo) Create(ctx context.Context, feed domain.Feed) (*domain.Feed, error) {
	if feed.ID == uuid.Nil {
		feed.ID = uuid.New()
	}

	rows, err := r.pool.Query(ctx, upsertFeed, feed.ID, feed.Author, feed.Title, feed.URL)
	if err != nil {
		return nil, domain.NewStorageError("create feed", err)
	}

	created, err := pgx.CollectExactlyOneRow(rows, scanFeed)
	if err != nil {
		return nil, domain.NewStorageError("create feed", err)
	}
	return &created, nil
}

func scanFeed(row pgx.CollectableRow) (domain.Feed, error) {
	var f domain.Feed
	err := row.Scan(&f.ID, &f.Author, &f.Title, &f.URL)
	return f, err
}
