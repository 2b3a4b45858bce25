package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatpanel/learning-hub/internal/observability"
)

// Operation names used in errors and metrics.
const (
	OpStore  = "store"
	OpUpdate = "update"
	OpDelete = "delete"
	OpSearch = "search"
	OpStats  = "stats"
)

// Bounded limits every call on the wrapped gateway to a deadline and folds every failure,
// including a deadline hit or a panic inside the backend, into ErrUnavailable.
// A backend that ignores its context is abandoned when the deadline passes.
type Bounded struct {
	next    Gateway
	timeout time.Duration
	metrics observability.VectorIndexMetrics
}

// NewBounded wraps next. metrics may be nil.
func NewBounded(next Gateway, timeout time.Duration, metrics observability.VectorIndexMetrics) *Bounded {
	return &Bounded{next: next, timeout: timeout, metrics: metrics}
}

type callResult[T any] struct {
	value T
	err   error
}

// boundedCall runs fn in its own goroutine so a stuck backend cannot hold the caller past the deadline.
func boundedCall[T any](ctx context.Context, b *Bounded, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan callResult[T], 1)

	go func() {
		var res callResult[T]

		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("panic: %v", r)
			}

			done <- res
		}()

		res.value, res.err = fn(ctx)
	}()

	var res callResult[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if b.metrics != nil {
		b.metrics.RecordOperation(ctx, op, outcomeOf(res.err), time.Since(start))
	}

	if res.err != nil {
		var zero T
		if errors.Is(res.err, ErrUnavailable) {
			return zero, fmt.Errorf("vector index %s: %w", op, res.err)
		}

		return zero, fmt.Errorf("%w: %s: %w", ErrUnavailable, op, res.err)
	}

	return res.value, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	default:
		return "error"
	}
}

// Store implements Gateway.
func (b *Bounded) Store(ctx context.Context, req StoreRequest) (string, error) {
	return boundedCall(ctx, b, OpStore, func(ctx context.Context) (string, error) {
		return b.next.Store(ctx, req)
	})
}

// Update implements Gateway.
func (b *Bounded) Update(ctx context.Context, vectorID string, helpful bool) error {
	_, err := boundedCall(ctx, b, OpUpdate, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.next.Update(ctx, vectorID, helpful)
	})

	return err
}

// Delete implements Gateway.
func (b *Bounded) Delete(ctx context.Context, vectorID string) error {
	_, err := boundedCall(ctx, b, OpDelete, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, vectorID)
	})

	return err
}

// Search implements Gateway.
func (b *Bounded) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return boundedCall(ctx, b, OpSearch, func(ctx context.Context) (*SearchResponse, error) {
		return b.next.Search(ctx, req)
	})
}

// Stats implements StatsReporter when the wrapped gateway does; otherwise it reports ErrUnavailable.
func (b *Bounded) Stats(ctx context.Context) (map[string]any, error) {
	reporter, ok := b.next.(StatsReporter)
	if !ok {
		return nil, fmt.Errorf("%w: stats not supported", ErrUnavailable)
	}

	return boundedCall(ctx, b, OpStats, reporter.Stats)
}
