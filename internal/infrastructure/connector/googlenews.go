package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"ResearchDigest/internal/cache"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/ports"
)

// GoogleNewsSource is the source tag of news search results.
const GoogleNewsSource = "google-news"

// GoogleNews searches the Google News RSS endpoint.
type GoogleNews struct {
	base       string
	fetcher    *Fetcher
	cache      ports.ItemCache
	normalizer *normalize.Normalizer
}

var _ ports.Connector = (*GoogleNews)(nil)

// NewGoogleNews builds the connector against base (e.g. https://news.google.com).
func NewGoogleNews(base string, f *Fetcher, c ports.ItemCache, n *normalize.Normalizer) *GoogleNews {
	return &GoogleNews{base: strings.TrimRight(base, "/"), fetcher: f, cache: c, normalizer: n}
}

func (g *GoogleNews) Name() string { return GoogleNewsSource }

// Search returns at most c.Limit stories published within c.Window.
func (g *GoogleNews) Search(ctx context.Context, query string, c ports.Constraints) ([]domain.Item, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return nil, nil
	}
	hours := int(c.Window.Hours())
	if hours < 1 {
		hours = 1
	}
	key := cache.Key("gnews", c.Window, c.Limit, q)

	return cached(ctx, g.cache, key, c.TTL, func(ctx context.Context) ([]domain.Item, error) {
		endpoint := fmt.Sprintf("%s/rss/search?q=%s+when:%dh&hl=en-US&gl=US&ceid=US:en", g.base, url.QueryEscape(q), hours)
		feed, err := g.fetcher.Feed(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("google news: %w", err)
		}
		items := make([]domain.Item, 0, len(feed.Items))
		for _, raw := range feed.Items {
			entry := normalize.FromGofeed(raw)
			entry.Link = strings.TrimPrefix(strings.TrimSpace(entry.Link), ".")
			if item, ok := g.normalizer.Canonical(entry, GoogleNewsSource, ""); ok {
				items = append(items, item)
			}
			if c.Limit > 0 && len(items) == c.Limit {
				break
			}
		}
		return items, nil
	})
}
