package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatpanel/learning-hub/internal/observability"
)

// MissingVectorLister lists learning records that have no vector id.
type MissingVectorLister interface {
	ListIDsMissingVector(ctx context.Context) ([]uuid.UUID, error)
}

// ReindexStats holds statistics from an enqueue pass.
type ReindexStats struct {
	Found    int `json:"found"`
	Enqueued int `json:"enqueued"`
	Errors   int `json:"errors"`
}

// Reindexer enqueues one reindex job per learning record missing its vector id.
type Reindexer struct {
	lister   MissingVectorLister
	inserter JobInserter
	metrics  observability.ReindexMetrics
	logger   *slog.Logger
}

// NewReindexer creates a Reindexer. metrics may be nil when metrics are disabled.
func NewReindexer(lister MissingVectorLister, inserter JobInserter, metrics observability.ReindexMetrics, logger *slog.Logger) *Reindexer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reindexer{lister: lister, inserter: inserter, metrics: metrics, logger: logger}
}

// EnqueueMissing enqueues a job for every record without a vector id. A failed insert is logged and
// counted; the pass continues with the next record.
func (r *Reindexer) EnqueueMissing(ctx context.Context) (*ReindexStats, error) {
	ids, err := r.lister.ListIDsMissingVector(ctx)
	if err != nil {
		return nil, fmt.Errorf("list learning records missing a vector: %w", err)
	}

	stats := &ReindexStats{Found: len(ids)}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("reindex enqueue interrupted: %w", err)
		}

		if err := r.inserter.InsertReindexJob(ctx, ReindexLearningArgs{LearningID: id}); err != nil {
			r.logger.ErrorContext(ctx, "failed to enqueue reindex job", "learning_id", id, "error", err)
			stats.Errors++

			continue
		}

		stats.Enqueued++
	}

	if r.metrics != nil && stats.Enqueued > 0 {
		r.metrics.RecordJobsEnqueued(ctx, int64(stats.Enqueued))
	}

	r.logger.InfoContext(ctx, "reindex jobs enqueued",
		"found", stats.Found,
		"enqueued", stats.Enqueued,
		"errors", stats.Errors,
	)

	return stats, nil
}
