// Package workers provides River job workers (learning record reindexing).
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/jobs"
	"github.com/chatpanel/learning-hub/internal/models"
	"github.com/chatpanel/learning-hub/internal/observability"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
)

// learningIndexStore is the minimal learning record access needed by the worker.
type learningIndexStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error)
	SetVectorID(ctx context.Context, id uuid.UUID, vectorID string) error
}

// LearningIndexWorker stores a learning record in the vector index and links the returned vector id.
type LearningIndexWorker struct {
	river.WorkerDefaults[jobs.ReindexLearningArgs]

	records learningIndexStore
	index   vectorindex.Gateway
	metrics observability.ReindexMetrics
	logger  *slog.Logger
}

// NewLearningIndexWorker creates the worker. metrics may be nil when metrics are disabled.
func NewLearningIndexWorker(
	records learningIndexStore,
	index vectorindex.Gateway,
	metrics observability.ReindexMetrics,
	logger *slog.Logger,
) *LearningIndexWorker {
	if logger == nil {
		logger = slog.Default()
	}

	return &LearningIndexWorker{
		records: records,
		index:   index,
		metrics: metrics,
		logger:  logger,
	}
}

const learningIndexTimeout = 30 * time.Second

// Timeout limits how long a single reindex job can run.
func (w *LearningIndexWorker) Timeout(*river.Job[jobs.ReindexLearningArgs]) time.Duration {
	return learningIndexTimeout
}

func (w *LearningIndexWorker) record(ctx context.Context, status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordOutcome(ctx, status, time.Since(start))
	}
}

// Work indexes the record unless it is gone or already indexed.
func (w *LearningIndexWorker) Work(ctx context.Context, job *river.Job[jobs.ReindexLearningArgs]) error {
	learningID := job.Args.LearningID
	start := time.Now()

	record, err := w.records.GetByID(ctx, learningID)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			w.record(ctx, "skipped", start)
			w.logger.InfoContext(ctx, "reindex: learning record deleted", "learning_id", learningID)

			return nil
		}

		w.record(ctx, "retry", start)

		return fmt.Errorf("get learning record: %w", err)
	}

	if record.VectorID != nil {
		w.record(ctx, "skipped", start)
		w.logger.InfoContext(ctx, "reindex: already indexed",
			"learning_id", learningID,
			"vector_id", *record.VectorID,
		)

		return nil
	}

	vectorID, err := w.index.Store(ctx, vectorindex.StoreRequest{
		LearningID:  record.ID,
		UserMessage: record.UserMessage,
		BotResponse: record.BotResponse,
		WasHelpful:  record.WasHelpful,
		Intent:      record.Intent,
		Category:    record.Category,
		OriginID:    record.OriginID,
	})
	if err != nil {
		return w.storeFailed(ctx, job, start, err)
	}

	if err := w.records.SetVectorID(ctx, learningID, vectorID); err != nil {
		w.record(ctx, "retry", start)

		return fmt.Errorf("link vector id: %w", err)
	}

	w.record(ctx, "success", start)
	w.logger.InfoContext(ctx, "reindex: stored",
		"learning_id", learningID,
		"vector_id", vectorID,
	)

	return nil
}

// storeFailed retries until the last attempt; the record stays valid without a vector either way.
func (w *LearningIndexWorker) storeFailed(
	ctx context.Context, job *river.Job[jobs.ReindexLearningArgs], start time.Time, err error,
) error {
	learningID := job.Args.LearningID

	if errors.Is(err, vectorindex.ErrDisabled) {
		w.record(ctx, "failed_final", start)

		return river.JobCancel(fmt.Errorf("reindex %s: %w", learningID, err))
	}

	if job.Attempt >= job.MaxAttempts {
		w.record(ctx, "failed_final", start)
		w.logger.ErrorContext(ctx, "reindex: vector index store failed (final attempt)",
			"learning_id", learningID,
			"error", err,
		)

		return nil
	}

	w.record(ctx, "retry", start)

	return fmt.Errorf("vector index store: %w", err)
}
