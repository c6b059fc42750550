package connector

import (
	"context"
	"fmt"
	"time"

	"ResearchDigest/internal/cache"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/ports"
)

// Feed reads the latest on-topic entries of one RSS feed. The query is ignored.
type Feed struct {
	url        string
	kind       string
	lang       domain.Language
	fetcher    *Fetcher
	cache      ports.ItemCache
	normalizer *normalize.Normalizer
	now        func() time.Time
}

var _ ports.Connector = (*Feed)(nil)

// NewFeed builds a connector for one configured feed; kind is "news" or "paper".
func NewFeed(url, kind string, lang domain.Language, f *Fetcher, c ports.ItemCache, n *normalize.Normalizer, now func() time.Time) *Feed {
	if now == nil {
		now = time.Now
	}
	return &Feed{url: url, kind: kind, lang: lang, fetcher: f, cache: c, normalizer: n, now: now}
}

// Name is the feed URL, which doubles as the source tag of its items.
func (f *Feed) Name() string { return f.url }

// Kind reports whether the feed carries news or papers.
func (f *Feed) Kind() string { return f.kind }

// Search returns up to c.Limit entries; dated entries older than c.Window are skipped.
func (f *Feed) Search(ctx context.Context, _ string, c ports.Constraints) ([]domain.Item, error) {
	key := cache.Key("rss", c.Window, c.Limit, f.url)
	return cached(ctx, f.cache, key, c.TTL, func(ctx context.Context) ([]domain.Item, error) {
		feed, err := f.fetcher.Feed(ctx, f.url)
		if err != nil {
			return nil, fmt.Errorf("rss %s: %w", f.url, err)
		}
		cutoff := time.Time{}
		if c.Window > 0 {
			cutoff = f.now().Add(-c.Window)
		}
		items := make([]domain.Item, 0, len(feed.Items))
		for _, raw := range feed.Items {
			item, ok := f.normalizer.Normalize(normalize.FromGofeed(raw), f.url, f.lang)
			if !ok {
				continue
			}
			if item.PublishedAt != nil && item.PublishedAt.Before(cutoff) {
				continue
			}
			items = append(items, item)
			if c.Limit > 0 && len(items) == c.Limit {
				break
			}
		}
		return items, nil
	})
}
