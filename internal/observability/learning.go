package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LearningMetrics records ingestion and feedback throughput.
type LearningMetrics interface {
	// RecordIngested counts one persisted learning record; indexed reports whether it got a vector id.
	RecordIngested(ctx context.Context, indexed bool)
	RecordFeedback(ctx context.Context, feedbackType string)
}

type learningMetrics struct {
	ingested metric.Int64Counter
	feedback metric.Int64Counter
}

// NewLearningMetrics creates LearningMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewLearningMetrics(meter metric.Meter) (LearningMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	ingested, err := meter.Int64Counter(
		MetricNameLearningsIngested,
		metric.WithDescription("Learning records persisted. Label indexed=false marks records stored without a vector."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create learnings ingested counter: %w", err)
	}

	feedback, err := meter.Int64Counter(
		MetricNameFeedbackRecorded,
		metric.WithDescription("Feedback records persisted by canonical feedback type"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create feedback recorded counter: %w", err)
	}

	return &learningMetrics{ingested: ingested, feedback: feedback}, nil
}

func (l *learningMetrics) RecordIngested(ctx context.Context, indexed bool) {
	l.ingested.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrIndexed, indexed)))
}

func (l *learningMetrics) RecordFeedback(ctx context.Context, feedbackType string) {
	l.feedback.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrFeedbackType, NormalizeReason(feedbackType, AllowedFeedbackTypes)),
	))
}
