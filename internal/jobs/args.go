// Package jobs defines the River job arguments and enqueueing for the learning hub.
package jobs

import "github.com/google/uuid"

// ReindexLearningKind is the River kind of ReindexLearningArgs.
const ReindexLearningKind = "learning_index"

// ReindexLearningArgs asks a worker to index one learning record that has no vector id yet.
// LearningID is the uniqueness key: at most one pending job exists per record.
type ReindexLearningArgs struct {
	LearningID uuid.UUID `json:"learning_id" river:"unique"`
}

// Kind returns the job type identifier for River.
func (ReindexLearningArgs) Kind() string { return ReindexLearningKind }
