package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedClient waits for a token before each provider call.
type RateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimitedClient allows perSecond calls per second with a burst of one.
func NewRateLimitedClient(next Client, perSecond float64) *RateLimitedClient {
	return &RateLimitedClient{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// CreateEmbedding blocks until the limiter allows the call or ctx is done.
func (c *RateLimitedClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}

	return c.next.CreateEmbedding(ctx, input)
}
