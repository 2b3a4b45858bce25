package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/models"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
)

const (
	defaultStatsDays   = 7
	recentLearningsMax = 5
)

// DailyStatsRepository is the storage behind the daily stats aggregator.
type DailyStatsRepository interface {
	Increment(ctx context.Context, day time.Time, delta models.StatsDelta) error
	ListSince(ctx context.Context, since time.Time) ([]models.DailyStats, error)
}

// LearningStatsReader provides the learning record aggregates of the overview.
type LearningStatsReader interface {
	CountHelpfulness(ctx context.Context) (*models.HelpfulnessCounts, error)
	CountBy(ctx context.Context, column string) ([]models.LabelCount, error)
	Recent(ctx context.Context, limit int) ([]models.LearningRecord, error)
}

// FeedbackSummaryReader provides feedback counts per kind.
type FeedbackSummaryReader interface {
	CountByType(ctx context.Context, filters *models.ListFeedbackFilters) (map[string]int64, error)
}

// DayOf truncates t to midnight in t's location. Every writer of daily stats derives its day key with it.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StatsService is the daily stats aggregator and the read side of the learning stats overview.
type StatsService struct {
	daily     DailyStatsRepository
	learnings LearningStatsReader
	feedback  FeedbackSummaryReader
	index     vectorindex.StatsReporter
	days      int
	now       func() time.Time
	logger    *slog.Logger
}

// StatsServiceParams configures StatsService. Index may be nil when the backend cannot report stats.
// Now defaults to time.Now (local time).
type StatsServiceParams struct {
	Daily     DailyStatsRepository
	Learnings LearningStatsReader
	Feedback  FeedbackSummaryReader
	Index     vectorindex.StatsReporter
	Days      int
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(p StatsServiceParams) *StatsService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}

	days := p.Days
	if days <= 0 {
		days = defaultStatsDays
	}

	return &StatsService{
		daily:     p.Daily,
		learnings: p.Learnings,
		feedback:  p.Feedback,
		index:     p.Index,
		days:      days,
		now:       now,
		logger:    logger,
	}
}

// Today returns the day key for the service clock.
func (s *StatsService) Today() time.Time {
	return DayOf(s.now())
}

// Bump adds delta to the bucket of day in one atomic upsert. A zero delta writes nothing.
func (s *StatsService) Bump(ctx context.Context, day time.Time, delta models.StatsDelta) error {
	if delta.IsZero() {
		return nil
	}

	if err := s.daily.Increment(ctx, DayOf(day), delta); err != nil {
		return huberrors.NewStorageError("bump daily stats", err)
	}

	return nil
}

// BumpToday is Bump for the current day.
func (s *StatsService) BumpToday(ctx context.Context, delta models.StatsDelta) error {
	return s.Bump(ctx, s.now(), delta)
}

// Overview assembles the learning stats overview.
func (s *StatsService) Overview(ctx context.Context) (*models.LearningStatsOverview, error) {
	counts, err := s.learnings.CountHelpfulness(ctx)
	if err != nil {
		return nil, huberrors.NewStorageError("count learning records", err)
	}

	feedback, err := s.feedback.CountByType(ctx, &models.ListFeedbackFilters{})
	if err != nil {
		return nil, huberrors.NewStorageError("count feedback by type", err)
	}

	categories, err := s.learnings.CountBy(ctx, "category")
	if err != nil {
		return nil, huberrors.NewStorageError("count learning records by category", err)
	}

	intents, err := s.learnings.CountBy(ctx, "intent")
	if err != nil {
		return nil, huberrors.NewStorageError("count learning records by intent", err)
	}

	daily, err := s.daily.ListSince(ctx, s.Today().AddDate(0, 0, -(s.days-1)))
	if err != nil {
		return nil, huberrors.NewStorageError("list daily stats", err)
	}

	recent, err := s.learnings.Recent(ctx, recentLearningsMax)
	if err != nil {
		return nil, huberrors.NewStorageError("list recent learning records", err)
	}

	return &models.LearningStatsOverview{
		Overview:         *counts,
		SatisfactionRate: SatisfactionRate(feedback),
		Feedback:         feedback,
		Categories:       categories,
		Intents:          intents,
		Daily:            daily,
		Recent:           recent,
		VectorIndex:      s.vectorIndexStats(ctx),
		GeneratedAt:      s.now(),
	}, nil
}

// vectorIndexStats never fails the overview: an unavailable index is reported inline.
func (s *StatsService) vectorIndexStats(ctx context.Context) map[string]any {
	if s.index == nil {
		return nil
	}

	stats, err := s.index.Stats(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "vector index stats unavailable", "error", err)

		return map[string]any{"status": "unavailable"}
	}

	return stats
}

// SatisfactionRate is the share of thumbs_up among thumbs feedback, as a percentage with one decimal.
// Returns 0 when there is no thumbs feedback.
func SatisfactionRate(summary map[string]int64) float64 {
	up := summary[models.FeedbackTypeThumbsUp.String()]
	down := summary[models.FeedbackTypeThumbsDown.String()]

	if up+down == 0 {
		return 0
	}

	return math.Round(float64(up)/float64(up+down)*1000) / 10
}
