package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ResearchDigest/internal/cache"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/ports"
)

// GitHubSource is the source tag of repository results.
const GitHubSource = "github"

const defaultRepoWindow = 30 * 24 * time.Hour

// GitHub searches public repositories recently pushed to.
type GitHub struct {
	base    string
	token   string
	fetcher *Fetcher
	cache   ports.ItemCache
	now     func() time.Time
}

var _ ports.Connector = (*GitHub)(nil)

type repoSearch struct {
	Items []struct {
		FullName    string    `json:"full_name"`
		HTMLURL     string    `json:"html_url"`
		Description string    `json:"description"`
		Stars       int       `json:"stargazers_count"`
		PushedAt    time.Time `json:"pushed_at"`
	} `json:"items"`
}

// NewGitHub builds the connector; token may be empty for anonymous access.
func NewGitHub(base, token string, f *Fetcher, c ports.ItemCache, now func() time.Time) *GitHub {
	if now == nil {
		now = time.Now
	}
	return &GitHub{base: strings.TrimRight(base, "/"), token: token, fetcher: f, cache: c, now: now}
}

func (g *GitHub) Name() string { return GitHubSource }

// Search returns the most starred repositories matching query pushed within c.Window.
func (g *GitHub) Search(ctx context.Context, query string, c ports.Constraints) ([]domain.Item, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return nil, nil
	}
	window := c.Window
	if window <= 0 {
		window = defaultRepoWindow
	}
	key := cache.Key("github", window, c.Limit, q)

	return cached(ctx, g.cache, key, c.TTL, func(ctx context.Context) ([]domain.Item, error) {
		body, err := g.fetcher.Get(ctx, g.endpoint(q, window, c.Limit), g.header())
		if err != nil {
			return nil, fmt.Errorf("github: %w", err)
		}
		var res repoSearch
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, fmt.Errorf("github: decode search: %w", err)
		}
		items := make([]domain.Item, 0, len(res.Items))
		for _, r := range res.Items {
			if r.FullName == "" || r.HTMLURL == "" {
				continue
			}
			item := domain.Item{
				ID:       normalize.ItemID(r.HTMLURL),
				Title:    r.FullName,
				URL:      r.HTMLURL,
				Source:   GitHubSource,
				Summary:  strings.TrimSpace(r.Description),
				Language: domain.LangEN,
				Tags:     []string{},
				Stars:    r.Stars,
			}
			if !r.PushedAt.IsZero() {
				pushed := r.PushedAt.UTC()
				item.PublishedAt = &pushed
			}
			items = append(items, item)
		}
		return truncate(items, c.Limit), nil
	})
}

func (g *GitHub) endpoint(q string, window time.Duration, limit int) string {
	if limit <= 0 {
		limit = 5
	}
	since := g.now().UTC().Add(-window).Format("2006-01-02")
	params := url.Values{}
	params.Set("q", q+" in:name,description,readme pushed:>"+since)
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(limit))
	return g.base + "/search/repositories?" + params.Encode()
}

func (g *GitHub) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		h.Set("Authorization", "Bearer "+g.token)
	}
	return h
}
