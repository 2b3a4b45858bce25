package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatpanel/learning-hub/internal/models"
)

// incrementDailyStatsQuery adds the delta to the day's bucket, creating it when absent.
// The whole read-modify-write happens in one statement, so concurrent bumps never lose increments.
const incrementDailyStatsQuery = `
	INSERT INTO learning_daily_stats (date, total_learnings, positive_feedback, negative_feedback, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (date) DO UPDATE SET
		total_learnings = learning_daily_stats.total_learnings + EXCLUDED.total_learnings,
		positive_feedback = learning_daily_stats.positive_feedback + EXCLUDED.positive_feedback,
		negative_feedback = learning_daily_stats.negative_feedback + EXCLUDED.negative_feedback,
		updated_at = EXCLUDED.updated_at`

// DailyStatsRepository handles data access for per-day learning stats.
type DailyStatsRepository struct {
	db *pgxpool.Pool
}

// NewDailyStatsRepository creates a new daily stats repository.
func NewDailyStatsRepository(db *pgxpool.Pool) *DailyStatsRepository {
	return &DailyStatsRepository{db: db}
}

// Increment atomically adds delta to the bucket for day. day must already be a day key.
func (r *DailyStatsRepository) Increment(ctx context.Context, day time.Time, delta models.StatsDelta) error {
	_, err := conn(ctx, r.db).Exec(ctx, incrementDailyStatsQuery,
		dateArg(day), delta.TotalLearnings, delta.PositiveFeedback, delta.NegativeFeedback, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment daily stats: %w", err)
	}

	return nil
}

// ListSince returns the buckets from since (inclusive) onwards, oldest first.
// Dates come back in the location of since so callers see the same day keys they wrote.
func (r *DailyStatsRepository) ListSince(ctx context.Context, since time.Time) ([]models.DailyStats, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT date, total_learnings, positive_feedback, negative_feedback, updated_at
		FROM learning_daily_stats
		WHERE date >= $1
		ORDER BY date`, dateArg(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DailyStats{}
	loc := since.Location()

	for rows.Next() {
		var s models.DailyStats
		if err := rows.Scan(&s.Date, &s.TotalLearnings, &s.PositiveFeedback, &s.NegativeFeedback, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}

		y, m, d := s.Date.Date()
		s.Date = time.Date(y, m, d, 0, 0, 0, 0, loc)

		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}

// dateArg keeps the calendar date of t (in its own location) regardless of the session time zone.
func dateArg(t time.Time) pgtype.Date {
	y, m, d := t.Date()

	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}
