package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/newspulse/internal/domain"
)

type ContentRepo struct {
	pool *pgxpool.Pool
}

var _ domain.ContentRepository = (*ContentRepo)(nil)

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

const findContentByFields = `-- name: FindContentByFields
SELECT id, author, url, title, publish_date, feed_id
FROM news
WHERE title = $1 AND feed_id = $2
LIMIT 1`

func (r *ContentRepo) FindByFields(ctx context.Context, title string, feedID uuid.UUID) (*domain.ContentItem, error) {
	rows, err := r.pool.Query(ctx, findContentByFields, title, feedID)
	if err != nil {
		return nil, domain.NewStorageError("find content", err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanContent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrContentNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("find content", err)
	}
	return &item, nil
}

const createContent = `-- name: CreateContent
INSERT INTO news (id, author, url, title, publish_date, feed_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, author, url, title, publish_date, feed_id`

func (r *ContentRepo) Create(ctx context.Context, item domain.ContentItem) (*domain.ContentItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	var publishDate *time.Time
	if !item.PublishDate.IsZero() {
		t := item.PublishDate.Time()
		publishDate = &t
	}

	rows, err := r.pool.Query(ctx, createContent,
		item.ID, item.Author, item.URL, item.Title, publishDate, item.FeedID)
	if err != nil {
		return nil, domain.NewStorageError("create content", err)
	}

	created, err := pgx.CollectExactlyOneRow(rows, scanContent)
	if err != nil {
		return nil, domain.NewStorageError("create content", err)
	}
	return &created, nil
}

func scanContent(row pgx.CollectableRow) (domain.ContentItem, error) {
	var (
		item        domain.ContentItem
		publishDate *time.Time
	)
	if err := row.Scan(&item.ID, &item.Author, &item.URL, &item.Title, &publishDate, &item.FeedID); err != nil {
		return item, err
	}
	if publishDate != nil {
		item.PublishDate = domain.NewDate(*publishDate)
	}
	return item, nil
}
