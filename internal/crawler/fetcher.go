package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/platform/version"
)

const maxDocumentSize = 10 << 20

var ErrDocumentTooLarge = errors.New("document too large")

// StatusError reports a response that completed with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request was not successful: status %d for url %s", e.StatusCode, e.URL)
}

// HTTPFetcher performs a single GET per call. It never retries.
type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}, maxSize: maxDocumentSize}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewFetchError("build request", err)
	}
	req.Header.Set("User-Agent", "newspulse/"+version.Version)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.NewFetchError("send request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewFetchError("fetch feed", &StatusError{URL: url, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, domain.NewFetchError("read body", err)
	}
	if int64(len(body)) > f.maxSize {
		return nil, domain.NewFetchError("read body", fmt.Errorf("%w: more than %d bytes from %s", ErrDocumentTooLarge, f.maxSize, url))
	}
	return body, nil
}
