// Package connector implements the upstream search sources used by retrieval.
package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
)

const maxBody = 4 << 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Code, e.Body)
}

// Fetcher is the HTTP layer shared by every network connector.
type Fetcher struct {
	client    *http.Client
	limiter   *HostLimiter
	userAgent string
}

// NewFetcher builds a pooled client with a per-request timeout and per-host pacing.
func NewFetcher(timeout, hostInterval time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   NewHostLimiter(hostInterval),
		userAgent: userAgent,
	}
}

// Get returns the body of a successful GET.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("wait for host: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// Feed fetches and parses an RSS or Atom document.
func (f *Fetcher) Feed(ctx context.Context, rawURL string) (*gofeed.Feed, error) {
	body, err := f.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", rawURL, err)
	}
	return feed, nil
}

// cached serves key from the cache or loads and stores it. Failed loads are not cached.
func cached(ctx context.Context, cache ports.ItemCache, key string, ttl time.Duration, load func(context.Context) ([]domain.Item, error)) ([]domain.Item, error) {
	if cache != nil {
		if items, ok := cache.Get(ctx, key); ok {
			return items, nil
		}
	}
	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Set(ctx, key, items, ttl)
	}
	return items, nil
}

func truncate(items []domain.Item, limit int) []domain.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
