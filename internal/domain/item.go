package domain

import "time"

// Language tags supported for items and subscribers.
type Language string

const (
	LangZH Language = "zh"
	LangEN Language = "en"
)


// Item is the candidate document flowing through retrieval, ranking and digests.
type Item struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	Summary     string     `json:"summary,omitempty"`
	SummaryZh   string     `json:"summary_zh,omitempty"`
	Language    Language   `json:"lang,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Score       float64    `json:"score"`
	Stars       int        `json:"star_count,omitempty"`
	Featured    bool       `json:"is_featured,omitempty"`
}

// Valid reports whether the item carries the fields required downstream.
func (i Item) Valid() bool {
	return i.Title != "" && i.URL != ""
}

// RankedItem pairs an item with its request-scoped heuristic rank.
type RankedItem struct {
	Item
	Rank float64
}

// Mode selects the retrieval and answer strategy.
type Mode string

const (
	ModeDeep  Mode = "research"
	ModeQuick Mode = "quick"
)

// ParseMode maps request strings onto a Mode; anything unknown is deep.
func ParseMode(value string) Mode {
	if Mode(value) == ModeQuick {
		return ModeQuick
	}
	return ModeDeep
}

// Answer is the result of a question-answering call.
type Answer struct {
	Text       string `json:"text"`
	References []Item `json:"references"`
}
