// Package retrieval fans a question out to every source and merges the candidates.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/decompose"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/ports"
)

const (
	// QualityFloor is the number of usable candidates below which a diagnostic is logged.
	QualityFloor  = 2
	// MaxSubQueries caps the decomposed queries fanned out to news and papers.
	MaxSubQueries = 3
	repoQueryTail = " OR autonomous driving OR ADAS"
	newsFeedKind  = "news"
)

// Decomposer splits a question into search queries.
type Decomposer interface {
	Decompose(ctx context.Context, question string) []string
}

// Sources are the connectors the orchestrator fans out to. Nil entries are skipped.
type Sources struct {
	News   ports.Connector
	Papers ports.Connector
	Repos  ports.Connector
	Store  ports.Connector
	Feeds  []ports.Connector
}

type kinded interface {
	Kind() string
}

// Orchestrator gathers candidates for deep and quick answers. It never writes to the store.
type Orchestrator struct {
	sources    Sources
	decomposer Decomposer
	cfg        config.RetrievalConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New builds an Orchestrator.
func New(src Sources, d Decomposer, cfg config.RetrievalConfig, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{sources: src, decomposer: d, cfg: cfg, logger: log, metrics: m}
}

// Retrieve returns deduplicated candidates capped at the mode's ceiling.
func (o *Orchestrator) Retrieve(ctx context.Context, question string, mode domain.Mode) []domain.Item {
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	var (
		merged   []domain.Item
		branches int
		mc       config.ModeConfig
	)
	if mode == domain.ModeQuick {
		mc = o.cfg.Quick
		calls := o.quickBranches(question, mc)
		branches = len(calls)
		merged = flatten(o.fanOut(ctx, calls))
	} else {
		mc = o.cfg.Deep
		merged, branches = o.deep(ctx, question, mc)
	}

	candidates := Dedupe(merged)
	if mc.Candidates > 0 && len(candidates) > mc.Candidates {
		candidates = candidates[:mc.Candidates]
	}

	if n := CountUsable(candidates); n < QualityFloor {
		o.logger.Warn("insufficient quality references", "mode", mode, "usable", n, "candidates", len(candidates))
	}
	o.logger.Debug("retrieval done", "mode", mode, "branches", branches, "merged", len(merged), "candidates", len(candidates))
	return candidates
}

type branch struct {
	name string
	call Call
}

func search(c ports.Connector, query string, cons ports.Constraints) branch {
	return branch{name: c.Name(), call: func(ctx context.Context) ([]domain.Item, error) {
		return c.Search(ctx, query, cons)
	}}
}

func (o *Orchestrator) quickBranches(question string, mc config.ModeConfig) []branch {
	var calls []branch
	if o.sources.News != nil {
		calls = append(calls, search(o.sources.News, question, ports.Constraints{Window: mc.NewsWindow, Limit: mc.NewsLimit, TTL: mc.NewsTTL}))
	}
	if o.sources.Store != nil {
		calls = append(calls, search(o.sources.Store, question, ports.Constraints{Limit: mc.StoreLimit}))
	}
	return calls
}

// deep starts the store, repo and feed branches at once and the per-query news and
// paper branches as soon as decomposition settles.
func (o *Orchestrator) deep(ctx context.Context, question string, mc config.ModeConfig) ([]domain.Item, int) {
	fixed := o.fixedBranches(question, mc)

	var (
		g        errgroup.Group
		fixedOut [][]domain.Item
		subOut   [][]domain.Item
		subCount int
	)
	g.Go(func() error {
		fixedOut = o.fanOut(ctx, fixed)
		return nil
	})
	g.Go(func() error {
		calls := o.subQueryBranches(o.subQueries(ctx, question), mc)
		subCount = len(calls)
		subOut = o.fanOut(ctx, calls)
		return nil
	})
	_ = g.Wait()

	return append(flatten(subOut), flatten(fixedOut)...), len(fixed) + subCount
}

func (o *Orchestrator) fixedBranches(question string, mc config.ModeConfig) []branch {
	var calls []branch
	if feeds := o.feedSample(mc); feeds != nil {
		calls = append(calls, *feeds)
	}
	if o.sources.Store != nil {
		calls = append(calls, search(o.sources.Store, question, ports.Constraints{Limit: mc.StoreLimit}))
	}
	if o.sources.Repos != nil && mc.RepoLimit > 0 {
		calls = append(calls, search(o.sources.Repos, question+repoQueryTail, ports.Constraints{Limit: mc.RepoLimit, TTL: mc.PaperTTL}))
	}
	return calls
}

func (o *Orchestrator) subQueryBranches(queries []string, mc config.ModeConfig) []branch {
	var calls []branch
	for _, q := range queries {
		if o.sources.News != nil {
			calls = append(calls, search(o.sources.News, q, ports.Constraints{Window: mc.NewsWindow, Limit: mc.NewsLimit, TTL: mc.NewsTTL}))
		}
		if o.sources.Papers != nil {
			calls = append(calls, search(o.sources.Papers, q, ports.Constraints{Window: mc.PaperWindow, Limit: mc.PaperLimit, TTL: mc.PaperTTL}))
		}
	}
	return calls
}

// subQueries runs the decomposer within its budget. A late, empty or panicking
// decomposition yields the deterministic fallback queries.
func (o *Orchestrator) subQueries(ctx context.Context, question string) []string {
	if o.decomposer == nil {
		return capQueries([]string{question})
	}
	if budget := o.decomposeBudget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	done := make(chan []string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Warn("decomposition panicked", "panic", r)
				done <- nil
			}
		}()
		done <- o.decomposer.Decompose(ctx, question)
	}()

	var queries []string
	select {
	case queries = <-done:
	case <-ctx.Done():
		o.logger.Warn("decomposition exceeded its budget, using fallback queries", "error", ctx.Err())
	}
	if len(queries) == 0 {
		queries = decompose.Fallback(question)
	}
	return capQueries(queries)
}

// decomposeBudget leaves at least half of the request deadline to the searches.
func (o *Orchestrator) decomposeBudget() time.Duration {
	budget := o.cfg.DecomposeTimeout
	if rt := o.cfg.RequestTimeout; rt > 0 && (budget <= 0 || budget > rt/2) {
		budget = rt / 2
	}
	return budget
}

func capQueries(queries []string) []string {
	if len(queries) > MaxSubQueries {
		return queries[:MaxSubQueries]
	}
	return queries
}

func flatten(results [][]domain.Item) []domain.Item {
	var out []domain.Item
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// feedSample reads the first news feeds concurrently, a few entries each, capped in total.
func (o *Orchestrator) feedSample(mc config.ModeConfig) *branch {
	var picked []ports.Connector
	for _, f := range o.sources.Feeds {
		if len(picked) == mc.FeedSample {
			break
		}
		if k, ok := f.(kinded); ok && k.Kind() != newsFeedKind {
			continue
		}
		picked = append(picked, f)
	}
	if len(picked) == 0 {
		return nil
	}

	return &branch{name: "rss", call: func(ctx context.Context) ([]domain.Item, error) {
		calls := make([]branch, 0, len(picked))
		for _, f := range picked {
			calls = append(calls, search(f, "", ports.Constraints{Limit: mc.FeedItems, TTL: mc.NewsTTL}))
		}
		items := flatten(o.fanOut(ctx, calls))
		if mc.FeedTotal > 0 && len(items) > mc.FeedTotal {
			items = items[:mc.FeedTotal]
		}
		return items, nil
	}}
}

func (o *Orchestrator) fanOut(ctx context.Context, calls []branch) [][]domain.Item {
	results := make([][]domain.Item, len(calls))
	var g errgroup.Group
	for i, b := range calls {
		g.Go(func() error {
			results[i] = Tolerant(ctx, o.logger, o.metrics, b.name, o.connectorTimeout(), b.call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) connectorTimeout() time.Duration {
	return o.cfg.ConnectorTimeout
}

// Dedupe keeps the first occurrence of every item id and drops invalid items.
func Dedupe(items []domain.Item) []domain.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if !it.Valid() {
			continue
		}
		key := it.ID
		if key == "" {
			key = it.URL
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

// CountUsable counts items with a descriptive title and a source tag.
func CountUsable(items []domain.Item) int {
	n := 0
	for _, it := range items {
		if len([]rune(it.Title)) > 10 && it.Source != "" {
			n++
		}
	}
	return n
}
