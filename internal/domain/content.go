package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicContentCreated is the broker topic carrying newly persisted content items.
const TopicContentCreated = "content_created"

const dateLayout = "2006-01-02"

// ContentItem is one piece of content discovered within a feed. Its JSON form is
// the broker payload and the wire payload delivered to subscribers.
type ContentItem struct {
	ID          uuid.UUID `json:"id"`
	Author      string    `json:"author"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	PublishDate Date      `json:"publish_date"`
	FeedID      uuid.UUID `json:"feed_id"`
}

type ContentRepository interface {
	// FindByFields returns ErrContentNotFound when no item matches both fields.
	FindByFields(ctx context.Context, title string, feedID uuid.UUID) (*ContentItem, error)
	Create(ctx context.Context, item ContentItem) (*ContentItem, error)
}

// Date is a calendar date without time of day. The zero value means "no date"
// and is encoded as an empty string.
type Date struct {
	t time.Time
}

// NewDate truncates t to its calendar date in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD". An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return d.t
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("publish_date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
