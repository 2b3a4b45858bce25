package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReindexMetrics records the reindex pipeline (enqueue, worker outcomes).
// Methods accept ctx for future exemplar support.
type ReindexMetrics interface {
	RecordJobsEnqueued(ctx context.Context, count int64)
	RecordOutcome(ctx context.Context, status string, duration time.Duration)
}

type reindexMetrics struct {
	jobsEnqueued metric.Int64Counter
	outcomes     metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewReindexMetrics creates ReindexMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewReindexMetrics(meter metric.Meter) (ReindexMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameReindexJobsEnqueued,
		metric.WithDescription("Total reindex jobs enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reindex jobs enqueued counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		MetricNameReindexOutcomes,
		metric.WithDescription("Total reindex job outcomes by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reindex outcomes counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameReindexDuration,
		metric.WithDescription("Reindex job duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reindex duration histogram: %w", err)
	}

	return &reindexMetrics{jobsEnqueued: jobsEnqueued, outcomes: outcomes, duration: duration}, nil
}

func (r *reindexMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	r.jobsEnqueued.Add(ctx, count)
}

func (r *reindexMetrics) RecordOutcome(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrStatus, NormalizeReason(status, AllowedReindexStatuses)))

	r.outcomes.Add(ctx, 1, attrs)
	r.duration.Record(ctx, duration.Seconds(), attrs)
}
