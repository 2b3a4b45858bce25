package models

import "time"

// DailyStats is the aggregate bucket for one calendar day (local midnight).
type DailyStats struct {
	Date             time.Time `json:"date"`
	TotalLearnings   int64     `json:"total_learnings"`
	PositiveFeedback int64     `json:"positive_feedback"`
	NegativeFeedback int64     `json:"negative_feedback"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StatsDelta is a partial set of increments applied to one day's bucket.
// Counters are never decremented.
type StatsDelta struct {
	TotalLearnings   int64
	PositiveFeedback int64
	NegativeFeedback int64
}

// IsZero reports whether applying d would change nothing.
func (d StatsDelta) IsZero() bool {
	return d.TotalLearnings == 0 && d.PositiveFeedback == 0 && d.NegativeFeedback == 0
}

// LearningStatsOverview is the read-side summary of the learning pipeline.
type LearningStatsOverview struct {
	Overview         HelpfulnessCounts `json:"overview"`
	SatisfactionRate float64           `json:"satisfaction_rate"`
	Feedback         map[string]int64  `json:"feedback"`
	Categories       []LabelCount      `json:"categories"`
	Intents          []LabelCount      `json:"intents"`
	Daily            []DailyStats      `json:"daily"`
	Recent           []LearningRecord  `json:"recent"`
	VectorIndex      map[string]any    `json:"vector_index,omitempty"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
