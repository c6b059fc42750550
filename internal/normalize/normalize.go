// Package normalize converts heterogeneous feed entries into canonical items.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/topic"
)

// FeedEntry is the union of field names seen across RSS and Atom item variants.
type FeedEntry struct {
	Title          string
	Link           string
	GUID           string
	ContentSnippet string
	Content        string
	Summary        string
	ISODate        string
	PubDate        string
	Published      *time.Time
}

// FromGofeed maps a parsed gofeed item onto a FeedEntry.
func FromGofeed(it *gofeed.Item) FeedEntry {
	if it == nil {
		return FeedEntry{}
	}
	entry := FeedEntry{
		Title:   it.Title,
		Link:    it.Link,
		GUID:    it.GUID,
		Content: it.Content,
		Summary: it.Description,
		PubDate: it.Published,
	}
	if entry.Link == "" && len(it.Links) > 0 {
		entry.Link = it.Links[0]
	}
	switch {
	case it.PublishedParsed != nil:
		entry.Published = it.PublishedParsed
	case it.UpdatedParsed != nil:
		entry.Published = it.UpdatedParsed
	}
	return entry
}

// Normalizer applies the topical allow-list and builds canonical items.
type Normalizer struct {
	matcher *topic.Matcher
	policy  *bluemonday.Policy
}

// New builds a Normalizer; a nil matcher uses the default keyword list.
func New(matcher *topic.Matcher) *Normalizer {
	if matcher == nil {
		matcher = topic.NewMatcher(nil)
	}
	return &Normalizer{matcher: matcher, policy: bluemonday.StrictPolicy()}
}

// Normalize returns the canonical item, or false when the entry must be dropped.
func (n *Normalizer) Normalize(entry FeedEntry, source string, lang domain.Language) (domain.Item, bool) {
	item, ok := n.Canonical(entry, source, lang)
	if !ok || !n.matcher.Match(item.Title+"\n"+item.Summary) {
		return domain.Item{}, false
	}
	return item, true
}

// Canonical builds the item without the topical allow-list; search results for a
// user query are on-topic by construction.
func (n *Normalizer) Canonical(entry FeedEntry, source string, lang domain.Language) (domain.Item, bool) {
	title := n.StripHTML(entry.Title)
	link := strings.TrimSpace(firstNonEmpty(entry.Link, entry.GUID))
	if title == "" || link == "" {
		return domain.Item{}, false
	}

	return domain.Item{
		ID:          ItemID(link),
		Title:       title,
		URL:         link,
		Source:      source,
		Summary:     n.StripHTML(firstNonEmpty(entry.ContentSnippet, entry.Content, entry.Summary)),
		Language:    lang,
		Tags:        []string{},
		PublishedAt: entry.publishedAt(),
	}, true
}

// StripHTML removes markup and collapses whitespace.
func (n *Normalizer) StripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	if strings.Contains(raw, "<") {
		text = n.policy.Sanitize(raw)
	}
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

// ItemID derives the stable identifier of a document from its URL.
func ItemID(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02",
}

func (e FeedEntry) publishedAt() *time.Time {
	if e.Published != nil {
		t := e.Published.UTC()
		return &t
	}
	for _, raw := range []string{e.ISODate, e.PubDate} {
		if t, ok := ParseDate(raw); ok {
			return &t
		}
	}
	return nil
}

// ParseDate tries the common feed date layouts.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
