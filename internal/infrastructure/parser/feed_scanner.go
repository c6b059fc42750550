package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/infrastructure/connector"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/scanner"
)

// FeedScanner reads every category URL as an RSS or Atom feed.
type FeedScanner struct {
	fetcher    *connector.Fetcher
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner builds the rss strategy on the shared fetcher.
func NewFeedScanner(f *connector.Fetcher, n *normalize.Normalizer, log *slog.Logger) *FeedScanner {
	if n == nil {
		n = normalize.New(nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &FeedScanner{fetcher: f, normalizer: n, logger: log}
}

func (s *FeedScanner) Name() string {
	return "rss"
}

// Scan keeps going when one feed fails; it errors only when every feed failed.
func (s *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	var (
		results []domain.Item
		failed  int
		lastErr error
	)
	for _, cat := range req.Categories {
		lang := cat.Lang
		if lang == "" {
			lang = domain.LangEN
		}
		feed := connector.NewFeed(cat.URL, "news", lang, s.fetcher, nil, s.normalizer, func() time.Time { return req.Now })
		items, err := feed.Search(ctx, "", ports.Constraints{})
		if err != nil {
			failed++
			lastErr = err
			s.logger.Warn("feed failed", "site", req.SiteName, "feed", cat.URL, "error", err)
			continue
		}
		results = append(results, items...)
	}

	if failed == len(req.Categories) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, lastErr)
	}
	return results, nil
}
