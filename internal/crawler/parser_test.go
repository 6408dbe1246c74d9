package crawler

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_RSSMapping(t *testing.T) {
	feed := domain.Feed{ID: uuid.New(), URL: "https://example.com/rss"}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	items, err := parseDocument([]byte(twoEntryRSS), feed, now)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "First post", first.Title)
	assert.Equal(t, "https://example.com/first", first.URL)
	assert.Equal(t, "Alice", first.Author)
	assert.Equal(t, "2024-03-05", first.PublishDate.String())
	assert.Equal(t, feed.ID, first.FeedID)
	assert.NotEqual(t, uuid.Nil, first.ID)

	second := items[1]
	assert.Empty(t, second.Author)
	assert.Equal(t, "2024-06-01", second.PublishDate.String(), "missing date falls back to today")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestParseDocument_AtomMapping(t *testing.T) {
	feed := domain.Feed{ID: uuid.New()}

	items, err := parseDocument([]byte(oneEntryAtom), feed, time.Now())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Bob", items[0].Author)
	assert.Equal(t, "https://example.org/entry-1", items[0].URL)
	assert.Equal(t, "2024-02-01", items[0].PublishDate.String())
}

func TestParseDocument_Malformed(t *testing.T) {
	_, err := parseDocument([]byte("<html><body>nope"), domain.Feed{}, time.Now())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindParse))
}

func TestParseDocument_NoEntries(t *testing.T) {
	doc := `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`
	items, err := parseDocument([]byte(doc), domain.Feed{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, items)
}
