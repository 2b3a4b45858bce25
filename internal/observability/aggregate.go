package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all learning hub metric collectors. When metrics are disabled, all fields are nil.
// Components that accept an interface (CacheMetrics, APIMetrics, VectorIndexMetrics, ...) can
// receive the corresponding field; they already handle nil.
type Metrics struct {
	Cache       CacheMetrics
	API         APIMetrics
	VectorIndex VectorIndexMetrics
	Learning    LearningMetrics
	Reindex     ReindexMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	vectorIndex, err := NewVectorIndexMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("vector index metrics: %w", err)
	}

	learning, err := NewLearningMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("learning metrics: %w", err)
	}

	reindex, err := NewReindexMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("reindex metrics: %w", err)
	}

	return &Metrics{
		Cache:       cache,
		API:         api,
		VectorIndex: vectorIndex,
		Learning:    learning,
		Reindex:     reindex,
	}, nil
}
