package domain

import (
	"context"

	"github.com/google/uuid"
)

// Feed is a periodically polled content source. It is owned by feed management
// and treated as immutable while a crawl is running.
type Feed struct {
	ID     uuid.UUID `json:"id"`
	Author string    `json:"author"`
	Title  string    `json:"title"`
	URL    string    `json:"url"`
}

type FeedRepository interface {
	List(ctx context.Context) ([]Feed, error)
}
