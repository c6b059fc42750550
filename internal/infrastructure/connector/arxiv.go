package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ResearchDigest/internal/cache"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/ports"
)

// ArxivSource is the source tag of preprint results.
const ArxivSource = "arxiv"

// Arxiv queries the arXiv export API for recent submissions.
type Arxiv struct {
	base       string
	fetcher    *Fetcher
	cache      ports.ItemCache
	normalizer *normalize.Normalizer
	now        func() time.Time
}

var _ ports.Connector = (*Arxiv)(nil)

// NewArxiv builds the connector against base (e.g. https://export.arxiv.org).
func NewArxiv(base string, f *Fetcher, c ports.ItemCache, n *normalize.Normalizer, now func() time.Time) *Arxiv {
	if now == nil {
		now = time.Now
	}
	return &Arxiv{base: strings.TrimRight(base, "/"), fetcher: f, cache: c, normalizer: n, now: now}
}

func (a *Arxiv) Name() string { return ArxivSource }

// Search returns the newest submissions matching query inside c.Window.
func (a *Arxiv) Search(ctx context.Context, query string, c ports.Constraints) ([]domain.Item, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return nil, nil
	}
	key := cache.Key("arxiv", c.Window, c.Limit, q)

	return cached(ctx, a.cache, key, c.TTL, func(ctx context.Context) ([]domain.Item, error) {
		feed, err := a.fetcher.Feed(ctx, a.endpoint(q, c))
		if err != nil {
			return nil, fmt.Errorf("arxiv: %w", err)
		}
		items := make([]domain.Item, 0, len(feed.Items))
		for _, raw := range feed.Items {
			if item, ok := a.normalizer.Canonical(normalize.FromGofeed(raw), ArxivSource, domain.LangEN); ok {
				items = append(items, item)
			}
		}
		return truncate(items, c.Limit), nil
	})
}

func (a *Arxiv) endpoint(q string, c ports.Constraints) string {
	end := a.now().UTC()
	start := end.Add(-c.Window)
	limit := c.Limit
	if limit <= 0 {
		limit = 10
	}
	return fmt.Sprintf(
		"%s/api/query?search_query=all:%s+AND+submittedDate:[%s0000+TO+%s2359]&sortBy=submittedDate&sortOrder=descending&max_results=%d",
		a.base, url.QueryEscape(q), start.Format("20060102"), end.Format("20060102"), limit,
	)
}
