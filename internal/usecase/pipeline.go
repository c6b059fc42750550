package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
	"ResearchDigest/internal/ranking"
)

// PipelineDeps wires the ingestion adapters.
type PipelineDeps struct {
	Source ports.ItemSource
	Store  ports.ItemStore
	Logger *slog.Logger
}

// Pipeline implements the item-ingestion workflow.
type Pipeline struct {
	source ports.ItemSource
	store  ports.ItemStore
	logger *slog.Logger
}

// NewPipeline constructs the ingestion component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		source: deps.Source,
		store:  deps.Store,
		logger: deps.Logger,
	}
}

// Ingest fetches every configured site, then stores and scores each item once.
func (p *Pipeline) Ingest(ctx context.Context, now time.Time) (domain.IngestStats, error) {
	if p.source == nil {
		return domain.IngestStats{}, nil
	}

	items, stats, err := p.source.FetchAll(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("fetch sites: %w", err)
	}
	if stats.Failures > 0 {
		p.logger.Warn("some sites failed", "failures", stats.Failures, "sites", stats.Sites)
	}
	if p.store == nil {
		return stats, nil
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if !item.Valid() {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		item.Score = ranking.Score(item, "", now)
		if err := p.store.UpsertItem(ctx, item); err != nil {
			return stats, fmt.Errorf("persist item %s: %w", item.ID, err)
		}
		if err := p.store.UpsertScore(ctx, item.ID, item.Score); err != nil {
			return stats, fmt.Errorf("score item %s: %w", item.ID, err)
		}
		stats.Stored++
	}

	p.logger.Info("ingestion done", "sites", stats.Sites, "fetched", stats.Fetched, "stored", stats.Stored)
	return stats, nil
}
