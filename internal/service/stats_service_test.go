package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/models"
)

func TestDayOf(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)

	late := time.Date(2026, time.March, 14, 23, 59, 59, 0, loc)
	early := time.Date(2026, time.March, 14, 0, 0, 1, 0, loc)

	assert.Equal(t, DayOf(late), DayOf(early))
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, loc), DayOf(late))
	assert.NotEqual(t, DayOf(late), DayOf(late.Add(time.Second)))
}

func TestBump(t *testing.T) {
	t.Run("zero delta writes nothing", func(t *testing.T) {
		daily := newMemoryDailyStats()

		require.NoError(t, newStats(daily).Bump(context.Background(), fixedNow(), models.StatsDelta{}))
		assert.Empty(t, daily.rows)
	})

	t.Run("same day collides onto one row", func(t *testing.T) {
		daily := newMemoryDailyStats()
		svc := newStats(daily)

		require.NoError(t, svc.Bump(context.Background(), fixedNow(), models.StatsDelta{TotalLearnings: 1}))
		require.NoError(t, svc.Bump(context.Background(), fixedNow().Add(-15*time.Hour), models.StatsDelta{PositiveFeedback: 1}))

		require.Len(t, daily.rows, 1)

		day := daily.day(fixedNow())
		assert.Equal(t, int64(1), day.TotalLearnings)
		assert.Equal(t, int64(1), day.PositiveFeedback)
	})

	t.Run("storage failure", func(t *testing.T) {
		daily := newMemoryDailyStats()
		daily.err = errors.New("connection refused")

		err := newStats(daily).Bump(context.Background(), fixedNow(), models.StatsDelta{NegativeFeedback: 1})
		assert.ErrorIs(t, err, huberrors.ErrStorage)
	})

	t.Run("concurrent increments all land", func(t *testing.T) {
		daily := newMemoryDailyStats()
		svc := newStats(daily)

		var wg sync.WaitGroup

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				assert.NoError(t, svc.BumpToday(context.Background(), models.StatsDelta{TotalLearnings: 1}))
			}()
		}

		wg.Wait()
		assert.Equal(t, int64(50), daily.day(fixedNow()).TotalLearnings)
	})
}

func TestSatisfactionRate(t *testing.T) {
	assert.InDelta(t, 0.0, SatisfactionRate(map[string]int64{}), 1e-9)
	assert.InDelta(t, 75.0, SatisfactionRate(map[string]int64{"thumbs_up": 3, "thumbs_down": 1, "star_rating": 9}), 1e-9)
	assert.InDelta(t, 66.7, SatisfactionRate(map[string]int64{"thumbs_up": 2, "thumbs_down": 1}), 1e-9)
}

type stubLearningStats struct{}

func (stubLearningStats) CountHelpfulness(context.Context) (*models.HelpfulnessCounts, error) {
	return &models.HelpfulnessCounts{Total: 4, Helpful: 2, NotHelpful: 1, Pending: 1}, nil
}

func (stubLearningStats) CountBy(_ context.Context, column string) ([]models.LabelCount, error) {
	return []models.LabelCount{{Label: column + "-a", Count: 3}}, nil
}

func (stubLearningStats) Recent(_ context.Context, limit int) ([]models.LearningRecord, error) {
	return make([]models.LearningRecord, limit), nil
}

type stubIndexStats struct {
	err error
}

func (s stubIndexStats) Stats(context.Context) (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}

	return map[string]any{"total_embeddings": 4}, nil
}

func TestOverview(t *testing.T) {
	daily := newMemoryDailyStats()
	require.NoError(t, daily.Increment(context.Background(), DayOf(fixedNow()), models.StatsDelta{TotalLearnings: 4}))
	require.NoError(t, daily.Increment(context.Background(), DayOf(fixedNow()).AddDate(0, 0, -30), models.StatsDelta{TotalLearnings: 9}))

	newSvc := func(index stubIndexStats) *StatsService {
		return NewStatsService(StatsServiceParams{
			Daily:     daily,
			Learnings: stubLearningStats{},
			Feedback:  &mockFeedbackRepo{summary: map[string]int64{"thumbs_up": 1, "thumbs_down": 1}},
			Index:     index,
			Now:       fixedNow,
		})
	}

	overview, err := newSvc(stubIndexStats{}).Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), overview.Overview.Total)
	assert.InDelta(t, 50.0, overview.SatisfactionRate, 1e-9)
	assert.Equal(t, "category-a", overview.Categories[0].Label)
	assert.Equal(t, "intent-a", overview.Intents[0].Label)
	require.Len(t, overview.Daily, 1)
	assert.Equal(t, int64(4), overview.Daily[0].TotalLearnings)
	assert.Len(t, overview.Recent, recentLearningsMax)
	assert.Equal(t, 4, overview.VectorIndex["total_embeddings"])

	overview, err = newSvc(stubIndexStats{err: errors.New("down")}).Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unavailable", overview.VectorIndex["status"])
}
