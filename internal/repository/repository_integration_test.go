package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/models"
	"github.com/chatpanel/learning-hub/pkg/database"
)

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()

	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("time zone %s unavailable: %v", name, err)
	}

	return loc
}

func mustDay(t *testing.T, loc *time.Location, y int, m time.Month, d int) time.Time {
	t.Helper()

	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// setupTestPool connects to TEST_DATABASE_URL and applies the base schema. Skips when unset.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_initial_schema.sql"))
	require.NoError(t, err)

	_, err = db.Exec(ctx, string(schema))
	require.NoError(t, err)

	return db
}

func TestLearningRecordsRepository_Integration(t *testing.T) {
	db := setupTestPool(t)
	ctx := context.Background()
	repo := NewLearningRecordsRepository(db)

	intent := "order_status"
	// Unsorted keys, a duplicate key and odd spacing: all must survive the round trip.
	contextDoc := `{"z": 1,  "channel":"whatsapp", "z": 2}`

	record, err := repo.Create(ctx, &models.CreateLearningRecordRequest{
		UserMessage: "where is my order?",
		BotResponse: "It ships tomorrow.",
		Intent:      &intent,
		Context:     []byte(contextDoc),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = repo.Delete(context.Background(), record.ID) })

	assert.Nil(t, record.VectorID)
	assert.Nil(t, record.WasHelpful)
	assert.Equal(t, contextDoc, string(record.Context))

	fetched, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, contextDoc, string(fetched.Context))

	require.NoError(t, repo.SetVectorID(ctx, record.ID, "vec-1"))

	score := 5.0
	updated, err := repo.UpdateHelpfulness(ctx, record.ID, true, &score)
	require.NoError(t, err)
	require.NotNil(t, updated.VectorID)
	assert.Equal(t, "vec-1", *updated.VectorID)
	assert.Equal(t, true, *updated.WasHelpful)
	assert.InDelta(t, 5.0, *updated.HelpfulScore, 0.0001)

	// A nil score leaves the stored score alone.
	updated, err = repo.UpdateHelpfulness(ctx, record.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, false, *updated.WasHelpful)
	assert.InDelta(t, 5.0, *updated.HelpfulScore, 0.0001)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, huberrors.ErrNotFound)
}

func TestFeedbackRecordsRepository_Integration(t *testing.T) {
	db := setupTestPool(t)
	ctx := context.Background()
	learningRepo := NewLearningRecordsRepository(db)
	feedbackRepo := NewFeedbackRecordsRepository(db)

	record, err := learningRepo.Create(ctx, &models.CreateLearningRecordRequest{
		UserMessage: "hi", BotResponse: "hello",
	})
	require.NoError(t, err)

	rating := 4
	fb, err := feedbackRepo.Create(ctx, &models.CreateFeedbackRequest{
		LearningID: &record.ID,
		Rating:     &rating,
	}, models.FeedbackTypeStarRating)
	require.NoError(t, err)
	assert.Equal(t, "api", fb.Source)

	summary, err := feedbackRepo.CountByType(ctx, &models.ListFeedbackFilters{LearningID: &record.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary["star_rating"])
	assert.Equal(t, int64(0), summary["thumbs_up"])

	// Deleting the learning record keeps the feedback row with a cleared link.
	_, err = learningRepo.Delete(ctx, record.ID)
	require.NoError(t, err)

	orphans, err := feedbackRepo.List(ctx, &models.ListFeedbackFilters{LearningID: &record.ID})
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestDailyStatsRepository_ConcurrentIncrements(t *testing.T) {
	db := setupTestPool(t)
	ctx := context.Background()
	repo := NewDailyStatsRepository(db)

	// A date far from any real traffic.
	day := mustDay(t, time.Local, 1999, 1, 2)

	_, err := db.Exec(ctx, `DELETE FROM learning_daily_stats WHERE date = $1`, dateArg(day))
	require.NoError(t, err)

	const workers = 20

	var wg sync.WaitGroup

	for i := range workers {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			delta := models.StatsDelta{TotalLearnings: 1}
			if i%2 == 0 {
				delta = models.StatsDelta{PositiveFeedback: 1}
			}

			assert.NoError(t, repo.Increment(ctx, day, delta))
		}(i)
	}

	wg.Wait()

	stats, err := repo.ListSince(ctx, day)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	assert.True(t, stats[0].Date.Equal(day))
	assert.Equal(t, int64(workers/2), stats[0].TotalLearnings)
	assert.Equal(t, int64(workers/2), stats[0].PositiveFeedback)
	assert.Equal(t, int64(0), stats[0].NegativeFeedback)
}

func TestTransactor_RollsBackEveryWrite(t *testing.T) {
	db := setupTestPool(t)
	ctx := context.Background()
	tx := NewTransactor(db)
	learnings := NewLearningRecordsRepository(db)
	daily := NewDailyStatsRepository(db)

	day := mustDay(t, time.Local, 1999, 3, 4)

	_, err := db.Exec(ctx, `DELETE FROM learning_daily_stats WHERE date = $1`, dateArg(day))
	require.NoError(t, err)

	var createdID uuid.UUID

	errBoom := errors.New("boom")
	err = tx.InTx(ctx, func(ctx context.Context) error {
		record, err := learnings.Create(ctx, &models.CreateLearningRecordRequest{UserMessage: "q", BotResponse: "a"})
		if err != nil {
			return err
		}

		createdID = record.ID

		if err := daily.Increment(ctx, day, models.StatsDelta{TotalLearnings: 1}); err != nil {
			return err
		}

		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.NotEqual(t, uuid.Nil, createdID)

	_, err = learnings.GetByID(ctx, createdID)
	assert.ErrorIs(t, err, huberrors.ErrNotFound)

	stats, err := daily.ListSince(ctx, day)
	require.NoError(t, err)

	for _, s := range stats {
		assert.False(t, s.Date.Equal(day), "stats bucket written by a rolled back transaction")
	}
}

func TestLearningRecordsRepository_LockForReference(t *testing.T) {
	db := setupTestPool(t)
	ctx := context.Background()
	repo := NewLearningRecordsRepository(db)

	record, err := repo.Create(ctx, &models.CreateLearningRecordRequest{UserMessage: "q", BotResponse: "a"})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = repo.Delete(context.Background(), record.ID) })

	err = NewTransactor(db).InTx(ctx, func(ctx context.Context) error {
		return repo.LockForReference(ctx, record.ID)
	})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.LockForReference(ctx, uuid.New()), huberrors.ErrNotFound)
}
