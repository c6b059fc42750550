package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/infrastructure/connector"
	"ResearchDigest/internal/normalize"
	"ResearchDigest/internal/scanner"
)

const (
	arxivBaseURL = "https://arxiv.org"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivScanner crawls category listing pages and keeps on-topic entries announced since req.Since.
type ArxivScanner struct {
	fetcher    *connector.Fetcher
	normalizer *normalize.Normalizer
	pageSize   int
}

var _ scanner.Scanner = (*ArxivScanner)(nil)

// NewArxivScanner wires the shared fetcher; pageSize defaults to 200.
func NewArxivScanner(f *connector.Fetcher, n *normalize.Normalizer) *ArxivScanner {
	if f == nil {
		f = connector.NewFetcher(20*time.Second, 0, "ResearchDigest/1.0")
	}
	if n == nil {
		n = normalize.New(nil)
	}
	return &ArxivScanner{fetcher: f, normalizer: n, pageSize: 200}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks through each category URL until it meets an entry older than req.Since.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	since := req.Since.UTC().Truncate(24 * time.Hour)
	results := make([]domain.Item, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			pageItems, shouldContinue := a.extractItems(doc, since, req.SiteName, cat.Name)
			for _, item := range pageItems {
				if _, ok := seen[item.ID]; ok {
					continue
				}
				seen[item.ID] = struct{}{}
				results = append(results, item)
			}

			if !shouldContinue {
				break
			}
			skip += a.pageSize
		}
	}

	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := a.fetcher.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (a *ArxivScanner) extractItems(doc *goquery.Document, since time.Time, siteName, category string) ([]domain.Item, bool) {
	var (
		collected    []domain.Item
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		entry, err := parseEntry(dt, dd)
		if err != nil {
			return true
		}

		if entry.Published != nil && entry.Published.UTC().Truncate(24*time.Hour).Before(since) {
			continueScan = false
			return false
		}

		item, ok := a.normalizer.Normalize(entry, sourceTag(siteName, category), domain.LangEN)
		if ok {
			collected = append(collected, item)
		}
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

// parseEntry reads one dt/dd pair of a listing page.
func parseEntry(dt, dd *goquery.Selection) (normalize.FeedEntry, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if href == "" {
		return normalize.FeedEntry{}, fmt.Errorf("entry has no abstract link")
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimPrefix(title, "Title:")
	title = strings.TrimSpace(title)

	summary := dd.Find("p.mathjax").First().Text()
	summary = strings.TrimPrefix(strings.TrimSpace(summary), "Abstract:")
	summary = strings.TrimSpace(summary)

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	entry := normalize.FeedEntry{Title: title, Link: href, Summary: summary}
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			entry.Published = &parsed
		}
	}
	return entry, nil
}

func sourceTag(siteName, category string) string {
	if category == "" {
		return siteName
	}
	return fmt.Sprintf("%s/%s", siteName, category)
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
