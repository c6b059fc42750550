package normalize

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"ResearchDigest/internal/domain"
)

func TestNormalizeDropsMalformedEntries(t *testing.T) {
	t.Parallel()

	n := New(nil)
	cases := []struct {
		name  string
		entry FeedEntry
	}{
		{name: "missing title", entry: FeedEntry{Link: "https://example.org/a", Summary: "autonomous driving"}},
		{name: "missing link and guid", entry: FeedEntry{Title: "Autonomous driving update"}},
		{name: "blank title", entry: FeedEntry{Title: "   ", Link: "https://example.org/a"}},
		{name: "off topic", entry: FeedEntry{Title: "Bakery opens", Link: "https://example.org/b", Summary: "fresh bread"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := n.Normalize(tc.entry, "feed", domain.LangEN); ok {
				t.Fatalf("expected entry to be dropped")
			}
		})
	}
}

func TestNormalizeWellFormedEntry(t *testing.T) {
	t.Parallel()

	n := New(nil)
	entry := FeedEntry{
		Title:   "End-to-end planning for ADAS",
		GUID:    "https://example.org/post/1",
		Content: "<p>New <b>BEV</b> model &amp; planner</p>",
		ISODate: "2025-11-08T10:00:00Z",
	}

	item, ok := n.Normalize(entry, "https://example.org/rss", domain.LangEN)
	if !ok {
		t.Fatalf("expected entry to be kept")
	}
	if item.URL != "https://example.org/post/1" {
		t.Fatalf("guid should be used as link, got %s", item.URL)
	}
	if item.Summary != "New BEV model & planner" {
		t.Fatalf("unexpected summary: %q", item.Summary)
	}
	if item.PublishedAt == nil || !item.PublishedAt.Equal(time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published: %v", item.PublishedAt)
	}
	if item.Source != "https://example.org/rss" || item.Language != domain.LangEN {
		t.Fatalf("unexpected source/lang: %s %s", item.Source, item.Language)
	}
	if item.Tags == nil || len(item.Tags) != 0 {
		t.Fatalf("tags should be empty and non-nil")
	}
}

func TestNormalizeIDIsDeterministic(t *testing.T) {
	t.Parallel()

	n := New(nil)
	a, okA := n.Normalize(FeedEntry{Title: "自动驾驶 新闻", Link: "https://example.org/x"}, "s1", domain.LangZH)
	b, okB := n.Normalize(FeedEntry{Title: "Autonomous trucks", Link: "https://example.org/x"}, "s2", domain.LangEN)
	if !okA || !okB {
		t.Fatalf("entries should be kept")
	}
	if a.ID != b.ID || a.ID != ItemID("https://example.org/x") {
		t.Fatalf("same url must give same id: %s vs %s", a.ID, b.ID)
	}
	if len(a.ID) != 64 {
		t.Fatalf("expected sha256 hex id, got %q", a.ID)
	}
	if ItemID("https://example.org/y") == a.ID {
		t.Fatalf("different urls must differ")
	}
}

func TestNormalizeSummaryPreference(t *testing.T) {
	t.Parallel()

	n := New(nil)
	item, ok := n.Normalize(FeedEntry{
		Title:          "ADAS news",
		Link:           "https://example.org/c",
		ContentSnippet: "snippet",
		Content:        "content",
		Summary:        "summary",
		PubDate:        "Sat, 08 Nov 2025 10:00:00 +0000",
	}, "feed", "")
	if !ok {
		t.Fatalf("expected entry to be kept")
	}
	if item.Summary != "snippet" {
		t.Fatalf("snippet should win, got %q", item.Summary)
	}
	if item.PublishedAt == nil {
		t.Fatalf("pubDate should be parsed")
	}
}

func TestNormalizeUnparseableDateIsAbsent(t *testing.T) {
	t.Parallel()

	n := New(nil)
	item, ok := n.Normalize(FeedEntry{Title: "ADAS", Link: "https://example.org/d", PubDate: "yesterday"}, "feed", "")
	if !ok {
		t.Fatalf("expected entry to be kept")
	}
	if item.PublishedAt != nil {
		t.Fatalf("expected no published date, got %v", item.PublishedAt)
	}
}

func TestFromGofeed(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC)
	entry := FromGofeed(&gofeed.Item{
		Title:           "Title",
		Links:           []string{"https://example.org/alt"},
		Description:     "desc",
		PublishedParsed: &published,
	})
	if entry.Link != "https://example.org/alt" || entry.Summary != "desc" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Published == nil || !entry.Published.Equal(published) {
		t.Fatalf("published not mapped")
	}
	if got := FromGofeed(nil); got.Title != "" {
		t.Fatalf("nil item should map to empty entry")
	}
}

func TestCanonicalSkipsAllowList(t *testing.T) {
	t.Parallel()

	n := New(nil)
	entry := FeedEntry{Title: "Bakery &amp; bread", Link: "https://example.org/b"}

	if _, ok := n.Normalize(entry, "google-news", domain.LangEN); ok {
		t.Fatalf("expected off-topic entry to be dropped by Normalize")
	}
	item, ok := n.Canonical(entry, "google-news", domain.LangEN)
	if !ok {
		t.Fatalf("expected Canonical to keep the entry")
	}
	if item.Title != "Bakery & bread" {
		t.Fatalf("unexpected title: %q", item.Title)
	}
}
