// Package fetch retrieves recipe pages over HTTP.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "recipedex/1.0 (+https://github.com/recipedex/backend)"

// Error wraps a network or HTTP failure fetching a page. It is
// propagated unchanged; the pipeline does not retry fetches.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher retrieves a page, following redirects.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a fetcher with the given timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
	return &Fetcher{client: client}
}

// Get downloads the page and returns its body together with the final
// URL after redirects.
func (f *Fetcher) Get(ctx context.Context, url string) (body, finalURL string, err error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", "", &Error{URL: url, Err: err}
	}
	if resp.IsError() {
		return "", "", &Error{URL: url, StatusCode: resp.StatusCode()}
	}

	final := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	return resp.String(), final, nil
}
