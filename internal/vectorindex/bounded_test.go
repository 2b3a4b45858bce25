package vectorindex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGateway is a Gateway whose behaviour is set per test.
type mockGateway struct {
	storeFunc  func(ctx context.Context, req StoreRequest) (string, error)
	updateFunc func(ctx context.Context, vectorID string, helpful bool) error
	deleteFunc func(ctx context.Context, vectorID string) error
	searchFunc func(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

func (m *mockGateway) Store(ctx context.Context, req StoreRequest) (string, error) {
	return m.storeFunc(ctx, req)
}

func (m *mockGateway) Update(ctx context.Context, vectorID string, helpful bool) error {
	return m.updateFunc(ctx, vectorID, helpful)
}

func (m *mockGateway) Delete(ctx context.Context, vectorID string) error {
	return m.deleteFunc(ctx, vectorID)
}

func (m *mockGateway) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return m.searchFunc(ctx, req)
}

type recordedOp struct {
	op      string
	outcome string
}

type mockVectorIndexMetrics struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (m *mockVectorIndexMetrics) RecordOperation(_ context.Context, op, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, recordedOp{op: op, outcome: outcome})
}

func TestBounded_PassesThroughSuccess(t *testing.T) {
	metrics := &mockVectorIndexMetrics{}
	b := NewBounded(&mockGateway{
		storeFunc: func(context.Context, StoreRequest) (string, error) { return "vec-1", nil },
	}, time.Second, metrics)

	id, err := b.Store(context.Background(), StoreRequest{})
	require.NoError(t, err)
	assert.Equal(t, "vec-1", id)
	assert.Equal(t, []recordedOp{{op: OpStore, outcome: "success"}}, metrics.ops)
}

func TestBounded_WrapsBackendErrors(t *testing.T) {
	backendErr := errors.New("connection refused")
	b := NewBounded(&mockGateway{
		updateFunc: func(context.Context, string, bool) error { return backendErr },
	}, time.Second, nil)

	err := b.Update(context.Background(), "vec-1", true)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, backendErr)
}

func TestBounded_TimeoutIsUnavailable(t *testing.T) {
	metrics := &mockVectorIndexMetrics{}
	release := make(chan struct{})
	defer close(release)

	// The backend ignores its context; the caller must still be released at the deadline.
	b := NewBounded(&mockGateway{
		searchFunc: func(context.Context, SearchRequest) (*SearchResponse, error) {
			<-release

			return &SearchResponse{}, nil
		},
	}, 30*time.Millisecond, metrics)

	start := time.Now()
	resp, err := b.Search(context.Background(), SearchRequest{Query: "q", Limit: 1})

	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, resp)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "timeout", metrics.ops[0].outcome)
}

func TestBounded_RecoversPanics(t *testing.T) {
	b := NewBounded(&mockGateway{
		deleteFunc: func(context.Context, string) error { panic("nil map write") },
	}, time.Second, nil)

	err := b.Delete(context.Background(), "vec-1")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "nil map write")
}

func TestBounded_Disabled(t *testing.T) {
	metrics := &mockVectorIndexMetrics{}
	b := NewBounded(Disabled{}, time.Second, metrics)

	_, err := b.Store(context.Background(), StoreRequest{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, "disabled", metrics.ops[0].outcome)

	_, err = b.Stats(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
