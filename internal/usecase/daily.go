package usecase

import (
	"context"
	"log/slog"
	"time"

	"ResearchDigest/internal/domain"
)

// Daily is the scheduled job: refresh the store, then send the digest.
type Daily struct {
	pipeline *Pipeline
	digest   *Digest
	logger   *slog.Logger
}

// NewDaily combines ingestion and digest delivery.
func NewDaily(pipeline *Pipeline, digest *Digest, log *slog.Logger) *Daily {
	if log == nil {
		log = slog.Default()
	}
	return &Daily{pipeline: pipeline, digest: digest, logger: log}
}

// Run ingests and mails. An ingestion failure is logged and the digest still
// goes out from what the store already holds.
func (d *Daily) Run(ctx context.Context, now time.Time) (domain.DigestReport, error) {
	var pulled int
	if d.pipeline != nil {
		stats, err := d.pipeline.Ingest(ctx, now)
		if err != nil {
			d.logger.Warn("ingestion failed", "error", err)
		}
		pulled = stats.Stored
	}
	if d.digest == nil {
		return domain.DigestReport{Pulled: pulled, Featured: []string{}}, nil
	}
	report, err := d.digest.Send(ctx, now)
	report.Pulled = pulled
	return report, err
}
