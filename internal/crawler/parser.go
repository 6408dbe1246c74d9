package crawler

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/samber/lo"
)

// parseDocument turns an RSS, Atom or JSON feed document into content items for feed.
// Entries without a publish date are dated at now.
func parseDocument(data []byte, feed domain.Feed, now time.Time) ([]domain.ContentItem, error) {
	// gofeed parsers keep per-document state, so each call gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewParseError("parse feed document", err)
	}

	today := domain.NewDate(now)
	items := lo.Map(parsed.Items, func(entry *gofeed.Item, _ int) domain.ContentItem {
		return toContentItem(entry, feed.ID, today)
	})
	return items, nil
}

func toContentItem(entry *gofeed.Item, feedID uuid.UUID, today domain.Date) domain.ContentItem {
	author := ""
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		author = entry.Authors[0].Name
	}

	published := today
	if entry.PublishedParsed != nil {
		published = domain.NewDate(*entry.PublishedParsed)
	}

	return domain.ContentItem{
		ID:          uuid.New(),
		Author:      author,
		URL:         entry.Link,
		Title:       entry.Title,
		PublishDate: published,
		FeedID:      feedID,
	}
}
