package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/jobs"
	"github.com/chatpanel/learning-hub/internal/models"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
)

type mockStore struct {
	getFunc   func(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error)
	linked    map[uuid.UUID]string
	setVecErr error
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	return m.getFunc(ctx, id)
}

func (m *mockStore) SetVectorID(_ context.Context, id uuid.UUID, vectorID string) error {
	if m.setVecErr != nil {
		return m.setVecErr
	}

	if m.linked == nil {
		m.linked = map[uuid.UUID]string{}
	}

	m.linked[id] = vectorID

	return nil
}

type storeGateway struct {
	vectorindex.Disabled

	storeFunc func(ctx context.Context, req vectorindex.StoreRequest) (string, error)
	calls     int
}

func (g *storeGateway) Store(ctx context.Context, req vectorindex.StoreRequest) (string, error) {
	g.calls++

	return g.storeFunc(ctx, req)
}

type mockReindexMetrics struct {
	statuses []string
}

func (m *mockReindexMetrics) RecordJobsEnqueued(context.Context, int64) {}

func (m *mockReindexMetrics) RecordOutcome(_ context.Context, status string, _ time.Duration) {
	m.statuses = append(m.statuses, status)
}

func newJob(id uuid.UUID, attempt, maxAttempts int) *river.Job[jobs.ReindexLearningArgs] {
	return &river.Job[jobs.ReindexLearningArgs]{
		JobRow: &rivertype.JobRow{Attempt: attempt, MaxAttempts: maxAttempts},
		Args:   jobs.ReindexLearningArgs{LearningID: id},
	}
}

func recordStore(record *models.LearningRecord) *mockStore {
	return &mockStore{getFunc: func(context.Context, uuid.UUID) (*models.LearningRecord, error) {
		return record, nil
	}}
}

func TestLearningIndexWorker_StoresAndLinks(t *testing.T) {
	id := uuid.New()
	store := recordStore(&models.LearningRecord{ID: id, UserMessage: "hi", BotResponse: "hello"})
	gateway := &storeGateway{storeFunc: func(_ context.Context, req vectorindex.StoreRequest) (string, error) {
		assert.Equal(t, "hi", req.UserMessage)

		return id.String(), nil
	}}
	metrics := &mockReindexMetrics{}

	err := NewLearningIndexWorker(store, gateway, metrics, nil).Work(context.Background(), newJob(id, 1, 5))
	require.NoError(t, err)

	assert.Equal(t, id.String(), store.linked[id])
	assert.Equal(t, []string{"success"}, metrics.statuses)
}

func TestLearningIndexWorker_SkipsIndexedRecords(t *testing.T) {
	id := uuid.New()
	vectorID := "vec-1"
	gateway := &storeGateway{}

	err := NewLearningIndexWorker(recordStore(&models.LearningRecord{ID: id, VectorID: &vectorID}), gateway, nil, nil).
		Work(context.Background(), newJob(id, 1, 5))
	require.NoError(t, err)
	assert.Zero(t, gateway.calls)
}

func TestLearningIndexWorker_DeletedRecord(t *testing.T) {
	store := &mockStore{getFunc: func(context.Context, uuid.UUID) (*models.LearningRecord, error) {
		return nil, huberrors.NewNotFoundError("learning record", "")
	}}

	err := NewLearningIndexWorker(store, &storeGateway{}, nil, nil).Work(context.Background(), newJob(uuid.New(), 1, 5))
	assert.NoError(t, err)
}

func TestLearningIndexWorker_GatewayFailure(t *testing.T) {
	id := uuid.New()
	failing := func() *storeGateway {
		return &storeGateway{storeFunc: func(context.Context, vectorindex.StoreRequest) (string, error) {
			return "", vectorindex.ErrUnavailable
		}}
	}

	t.Run("retries before the last attempt", func(t *testing.T) {
		metrics := &mockReindexMetrics{}
		store := recordStore(&models.LearningRecord{ID: id})

		err := NewLearningIndexWorker(store, failing(), metrics, nil).Work(context.Background(), newJob(id, 2, 5))
		require.ErrorIs(t, err, vectorindex.ErrUnavailable)
		assert.Equal(t, []string{"retry"}, metrics.statuses)
		assert.Empty(t, store.linked)
	})

	t.Run("drops on the last attempt", func(t *testing.T) {
		metrics := &mockReindexMetrics{}

		err := NewLearningIndexWorker(recordStore(&models.LearningRecord{ID: id}), failing(), metrics, nil).
			Work(context.Background(), newJob(id, 5, 5))
		require.NoError(t, err)
		assert.Equal(t, []string{"failed_final"}, metrics.statuses)
	})

	t.Run("disabled index cancels", func(t *testing.T) {
		gateway := &storeGateway{storeFunc: func(context.Context, vectorindex.StoreRequest) (string, error) {
			return "", vectorindex.ErrDisabled
		}}

		err := NewLearningIndexWorker(recordStore(&models.LearningRecord{ID: id}), gateway, nil, nil).
			Work(context.Background(), newJob(id, 1, 5))
		require.Error(t, err)
		assert.ErrorIs(t, err, vectorindex.ErrDisabled)
	})
}

func TestLearningIndexWorker_LinkFailureRetries(t *testing.T) {
	id := uuid.New()
	store := recordStore(&models.LearningRecord{ID: id})
	store.setVecErr = errors.New("connection reset")

	gateway := &storeGateway{storeFunc: func(context.Context, vectorindex.StoreRequest) (string, error) {
		return id.String(), nil
	}}

	err := NewLearningIndexWorker(store, gateway, nil, nil).Work(context.Background(), newJob(id, 1, 5))
	assert.ErrorContains(t, err, "link vector id")
}
