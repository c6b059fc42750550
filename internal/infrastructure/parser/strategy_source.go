package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ResearchDigest/internal/config"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/scanner"
)

// StrategySource implements ItemSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	window   time.Duration
	logger   *slog.Logger
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites; window bounds
// how far back dated listings are read.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, window time.Duration, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		window:   window,
		logger:   log,
	}
}

// FetchAll iterates over configured sites and executes their scanners. A failing
// site is logged and counted; the others still contribute.
func (s *StrategySource) FetchAll(ctx context.Context, now time.Time) ([]domain.Item, domain.IngestStats, error) {
	stats := domain.IngestStats{Sites: len(s.sites)}
	if s.registry == nil {
		return nil, stats, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch all", "sites", len(s.sites), "now", now.Format(time.RFC3339))

	var aggregated []domain.Item
	for _, site := range s.sites {
		if err := ctx.Err(); err != nil {
			return aggregated, stats, err
		}
		s.debug("process site", "site", site.Name, "scanner", site.Scanner, "categories", len(site.Categories))
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			stats.Failures++
			s.warn("site skipped", "site", site.Name, "error", err)
			continue
		}

		req := scanner.Request{
			Now:        now,
			Since:      now.Add(-s.window),
			SiteName:   site.Name,
			Options:    site.Options,
			Categories: toScannerCategories(site.Categories),
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			stats.Failures++
			s.warn("scan site failed", "site", site.Name, "error", err)
			continue
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = site.Name
			}
		}
		s.debug("site produced items", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	stats.Fetched = len(aggregated)
	s.debug("strategy source done", "total_items", len(aggregated), "failures", stats.Failures)
	return aggregated, stats, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
			Lang: domain.Language(cat.Lang),
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
