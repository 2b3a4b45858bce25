package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultGoogleModel      = "gemini-embedding-001"
	defaultGoogleDimensions = 768
)

// GoogleClient calls the Gemini embeddings API via the Google Gen AI SDK.
type GoogleClient struct {
	client     *genai.Client
	model      string
	dimensions int
}

// GoogleOption configures the GoogleClient.
type GoogleOption func(*GoogleClient)

// WithGoogleModel sets the embedding model name. Empty keeps gemini-embedding-001.
func WithGoogleModel(model string) GoogleOption {
	return func(c *GoogleClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithGoogleDimensions sets the requested output dimensionality. Zero keeps the default.
func WithGoogleDimensions(dim int) GoogleOption {
	return func(c *GoogleClient) {
		if dim != 0 {
			c.dimensions = dim
		}
	}
}

// NewGoogleClient creates a Gemini embeddings client.
func NewGoogleClient(ctx context.Context, apiKey string, opts ...GoogleOption) (*GoogleClient, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	client := &GoogleClient{
		client:     genaiClient,
		model:      defaultGoogleModel,
		dimensions: defaultGoogleDimensions,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// CreateEmbedding returns the embedding vector for input using the configured model.
func (c *GoogleClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dims := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(input, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &dims},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	return checkDimensions(resp.Embeddings[0].Values, c.dimensions)
}
