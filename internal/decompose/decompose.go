// Package decompose turns a research question into a few focused search queries.
package decompose

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/prompt"
	"ResearchDigest/internal/topic"
)

const (
	maxQueries        = 3
	fallbackQueryRune = 50
)

var (
	listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)、])\s*`)
	// scaffold labels echoed from the prompt, matched with their colon.
	scaffold   = regexp.MustCompile(`^(?i:questions?|requirements?|examples?|output)\s*[:：]|^(?:问题|要求|示例|输出)\s*[:：]`)

	errEmptyDecomposition = errors.New("model returned no usable queries")
)

// Decomposer asks a small model for sub-queries and falls back deterministically.
type Decomposer struct {
	generator ports.Generator
	model     string
	prompts   *prompt.Catalogue
	timeout   time.Duration
	logger    *slog.Logger
}

// New builds a Decomposer; timeout bounds the single model call.
func New(gen ports.Generator, model string, prompts *prompt.Catalogue, timeout time.Duration, log *slog.Logger) *Decomposer {
	if log == nil {
		log = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.MustLoad()
	}
	return &Decomposer{generator: gen, model: model, prompts: prompts, timeout: timeout, logger: log}
}

// Decompose returns 1-3 queries. It makes exactly one model attempt.
func (d *Decomposer) Decompose(ctx context.Context, question string) []string {
	queries, err := d.ask(ctx, question)
	if err != nil {
		d.logger.Warn("decomposition failed, using fallback queries", "error", err)
		return Fallback(question)
	}
	d.logger.Debug("decomposed question", "queries", queries)
	return queries
}

func (d *Decomposer) ask(ctx context.Context, question string) ([]string, error) {
	if d.generator == nil {
		return nil, errors.New("no generator configured")
	}
	text, err := d.prompts.Decompose(question)
	if err != nil {
		return nil, err
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	out, err := d.generator.Generate(ctx, d.model, text)
	if err != nil {
		return nil, err
	}
	queries := Parse(out)
	if len(queries) == 0 {
		return nil, errEmptyDecomposition
	}
	return queries, nil
}

// Parse extracts at most three distinct queries from line-delimited model output.
func Parse(output string) []string {
	seen := make(map[string]struct{}, maxQueries)
	queries := make([]string, 0, maxQueries)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		line = strings.Trim(line, "`\"'")
		if line == "" || isScaffold(line) {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, line)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}

func isScaffold(line string) bool {
	return scaffold.MatchString(line)
}

// Fallback is the question without question marks, cut to 50 runes, plus the default domain queries.
func Fallback(question string) []string {
	q := strings.NewReplacer("?", "", "？", "").Replace(question)
	q = strings.TrimSpace(q)
	if r := []rune(q); len(r) > fallbackQueryRune {
		q = strings.TrimSpace(string(r[:fallbackQueryRune]))
	}
	out := make([]string, 0, 1+len(topic.DefaultQueries))
	if q != "" {
		out = append(out, q)
	}
	return append(out, topic.DefaultQueries...)
}
