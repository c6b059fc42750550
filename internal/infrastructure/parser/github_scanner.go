package parser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/infrastructure/connector"
	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/scanner"
)

const defaultRepoQuery = "autonomous driving OR ADAS OR smart cockpit"

// GitHubScanner ingests recently active repositories through the search API.
type GitHubScanner struct {
	base    string
	token   string
	fetcher *connector.Fetcher
}

var _ scanner.Scanner = (*GitHubScanner)(nil)

// NewGitHubScanner builds the github strategy; token may be empty.
func NewGitHubScanner(base, token string, f *connector.Fetcher) *GitHubScanner {
	return &GitHubScanner{base: base, token: token, fetcher: f}
}

func (g *GitHubScanner) Name() string {
	return "github"
}

// Scan reads the "query" and "limit" options of the site.
func (g *GitHubScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	query := req.Options["query"]
	if query == "" {
		query = defaultRepoQuery
	}
	limit := 5
	if raw := req.Options["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("site %s: invalid limit %q", req.SiteName, raw)
		}
		limit = n
	}

	now := req.Now
	search := connector.NewGitHub(g.base, g.token, g.fetcher, nil, func() time.Time { return now })
	window := time.Duration(0)
	if !req.Since.IsZero() && req.Since.Before(now) {
		window = now.Sub(req.Since)
	}
	return search.Search(ctx, query, ports.Constraints{Window: window, Limit: limit})
}
