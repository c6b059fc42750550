// Package ranking scores candidates with recency, source priors and keyword overlap.
package ranking

import (
	"sort"
	"strings"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/topic"
)

const (
	recencyWindow  = 48 * time.Hour
	recencyWeight  = 1.5
	titleWeight    = 0.8
	summaryWeight  = 0.6
	termIncrement  = 1.0
	questionAnchor = 2.0
)

// Recency decays linearly from 1 (published now or later) to 0 (48h or older, or undated).
func Recency(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0
	}
	age := now.Sub(*publishedAt)
	if age < 0 {
		age = 0
	}
	if age >= recencyWindow {
		return 0
	}
	return float64(recencyWindow-age) / float64(recencyWindow)
}

// Boost counts domain terms present in text plus a bonus when the question itself appears.
func Boost(text, question string) float64 {
	lower := strings.ToLower(text)
	if lower == "" {
		return 0
	}
	var score float64
	for _, term := range topic.BoostTerms {
		if strings.Contains(lower, term) {
			score += termIncrement
		}
	}
	q := strings.ToLower(strings.TrimSpace(question))
	if q != "" && strings.Contains(lower, q) {
		score += questionAnchor
	}
	return score
}

// Score is the heuristic relevance of one item for a question at a given instant.
func Score(item domain.Item, question string, now time.Time) float64 {
	return Recency(item.PublishedAt, now)*recencyWeight +
		Boost(item.Title, question)*titleWeight +
		Boost(item.Summary, question)*summaryWeight +
		topic.SourceWeight(item.Source)
}

// Rank scores every candidate, sorts descending (ties keep input order) and keeps the top n.
// A non-positive n keeps everything.
func Rank(candidates []domain.Item, question string, now time.Time, n int) []domain.RankedItem {
	ranked := make([]domain.RankedItem, len(candidates))
	for i, c := range candidates {
		ranked[i] = domain.RankedItem{Item: c, Rank: Score(c, question, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rank > ranked[j].Rank
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Items strips the ranks off a ranked list.
func Items(ranked []domain.RankedItem) []domain.Item {
	items := make([]domain.Item, len(ranked))
	for i, r := range ranked {
		items[i] = r.Item
	}
	return items
}
