package embeddings

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/chatpanel/learning-hub/internal/observability"
)

// CacheName labels cache hit/miss metrics for query embeddings.
const CacheName = "query_embedding"

// CachingClient memoises embeddings by input text. Concurrent misses for the same text share one provider call.
type CachingClient struct {
	next    Client
	cache   *lru.Cache[string, []float32]
	group   singleflight.Group
	metrics observability.CacheMetrics
}

// NewCachingClient wraps next with an LRU cache holding up to size entries. metrics may be nil.
func NewCachingClient(next Client, size int, metrics observability.CacheMetrics) (*CachingClient, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &CachingClient{next: next, cache: cache, metrics: metrics}, nil
}

// CreateEmbedding returns the cached vector for input or loads it from the wrapped client.
// Failed loads are not cached.
func (c *CachingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	key := strings.TrimSpace(input)

	if vec, ok := c.cache.Get(key); ok {
		if c.metrics != nil {
			c.metrics.RecordHit(ctx, CacheName)
		}

		return vec, nil
	}

	if c.metrics != nil {
		c.metrics.RecordMiss(ctx, CacheName)
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		vec, loadErr := c.next.CreateEmbedding(ctx, key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.cache.Add(key, vec)

		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cached embedding: %w", err)
	}

	vec, _ := val.([]float32)

	return vec, nil
}

// Len returns the number of cached entries.
func (c *CachingClient) Len() int {
	return c.cache.Len()
}
