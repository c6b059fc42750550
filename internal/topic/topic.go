// Package topic holds the domain vocabulary used to keep feeds on-topic and to rank results.
package topic

import (
	"regexp"
	"strings"
)

// Keywords is the allow-list applied to feed entries.
var Keywords = []string{
	"autonomous driving", "self-driving", "autopilot", "ADAS", "end-to-end driving", "BEV", "BEVFormer",
	"smart cockpit", "in-cabin", "智能座舱", "车载大模型", "自动驾驶", "智驾", "泊车", "L2", "L3",
	"Vision-Language", "VLM", "LLM", "多模态", "端到端", "驾驶", "道路",
}

// BoostTerms are the bilingual technical terms counted by the ranker.
var BoostTerms = []string{
	"autonomous", "end-to-end", "自动驾驶", "adas", "智能座舱", "车载大模型",
	"bev", "planning", "perception", "llm", "vlm",
}

// DefaultQueries back the decomposer when the model cannot be reached.
var DefaultQueries = []string{"autonomous driving", "self-driving technology"}

var coreExpr = regexp.MustCompile(`(?i)autonomous|自动驾驶|adas|smart cockpit|智能座舱|车载大模型`)

// Matcher decides whether a text belongs to the domain.
type Matcher struct {
	keywords []string
}

// NewMatcher lowercases the keyword list once; nil or empty falls back to Keywords.
func NewMatcher(keywords []string) *Matcher {
	if len(keywords) == 0 {
		keywords = Keywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Matcher{keywords: lowered}
}

// Match reports whether any keyword or the core expression appears in text.
func (m *Matcher) Match(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range m.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return coreExpr.MatchString(lower)
}

type sourceWeight struct {
	needles []string
	weight  float64
}

var sourceWeights = []sourceWeight{
	{needles: []string{"automotivedive"}, weight: 1.6},
	{needles: []string{"techcrunch", "theverge", "technologyreview"}, weight: 1.3},
	{needles: []string{"arxiv"}, weight: 1.2},
	{needles: []string{"github"}, weight: 0.6},
}

// SourceWeight returns the static prior for an origin tag; unknown sources weigh 1.0.
func SourceWeight(source string) float64 {
	s := strings.ToLower(source)
	for _, sw := range sourceWeights {
		for _, needle := range sw.needles {
			if strings.Contains(s, needle) {
				return sw.weight
			}
		}
	}
	return 1.0
}
