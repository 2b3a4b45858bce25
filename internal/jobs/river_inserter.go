package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// JobInserter enqueues reindex jobs. Reindexer depends on it rather than on River.
type JobInserter interface {
	InsertReindexJob(ctx context.Context, args ReindexLearningArgs) error
}

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client      *river.Client[pgx.Tx]
	maxAttempts int
}

// NewRiverJobInserter creates a new River-based job inserter. maxAttempts <= 0 keeps River's default.
func NewRiverJobInserter(client *river.Client[pgx.Tx], maxAttempts int) *RiverJobInserter {
	return &RiverJobInserter{client: client, maxAttempts: maxAttempts}
}

// InsertReindexJob enqueues a reindex job with uniqueness constraints.
func (r *RiverJobInserter) InsertReindexJob(ctx context.Context, args ReindexLearningArgs) error {
	_, err := r.client.Insert(ctx, args, &river.InsertOpts{
		MaxAttempts: r.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			// Only one pending job per learning record (by args)
			ByArgs: true,
			// Note: JobStatePending is required by River when using ByState
			ByState: []rivertype.JobState{
				rivertype.JobStatePending,
				rivertype.JobStateAvailable,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("insert reindex job: %w", err)
	}

	return nil
}
