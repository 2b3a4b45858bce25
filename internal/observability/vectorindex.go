package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// VectorIndexMetrics records vector index gateway calls by operation and outcome.
type VectorIndexMetrics interface {
	RecordOperation(ctx context.Context, op, outcome string, duration time.Duration)
}

type vectorIndexMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewVectorIndexMetrics creates VectorIndexMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewVectorIndexMetrics(meter metric.Meter) (VectorIndexMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	operations, err := meter.Int64Counter(
		MetricNameVectorIndexOperations,
		metric.WithDescription("Vector index gateway calls by operation and outcome (success, error, timeout, disabled)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector index operations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameVectorIndexDuration,
		metric.WithDescription("Vector index gateway call duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create vector index duration histogram: %w", err)
	}

	return &vectorIndexMetrics{operations: operations, duration: duration}, nil
}

func (v *vectorIndexMetrics) RecordOperation(ctx context.Context, op, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrOperation, NormalizeReason(op, AllowedVectorIndexOperations)),
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedVectorIndexOutcomes)),
	)

	v.operations.Add(ctx, 1, attrs)
	v.duration.Record(ctx, duration.Seconds(), attrs)
}
