package embeddings

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

const (
	defaultOpenAIModel      = openaisdk.EmbeddingModelTextEmbedding3Small
	defaultOpenAIDimensions = 1536
)

// OpenAIClient calls the OpenAI embeddings API via the official SDK.
type OpenAIClient struct {
	sdk        openaisdk.Client
	model      openaisdk.EmbeddingModel
	dimensions int
}

// OpenAIOption configures the OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithOpenAIModel sets the embedding model. Empty keeps text-embedding-3-small.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = openaisdk.EmbeddingModel(model)
		}
	}
}

// WithOpenAIDimensions sets the requested embedding dimension. Zero keeps the default.
func WithOpenAIDimensions(dim int) OpenAIOption {
	return func(c *OpenAIClient) {
		if dim != 0 {
			c.dimensions = dim
		}
	}
}

// NewOpenAIClient creates an OpenAI embeddings client.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	return newOpenAIClient([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
}

func newOpenAIClient(sdkOpts []option.RequestOption, opts ...OpenAIOption) *OpenAIClient {
	client := &OpenAIClient{
		sdk:        openaisdk.NewClient(sdkOpts...),
		model:      defaultOpenAIModel,
		dimensions: defaultOpenAIDimensions,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// CreateEmbedding returns the embedding vector for input. Its length equals the configured dimensions.
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:      c.model,
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	return checkDimensions(resp.Data[0].Embedding, c.dimensions)
}
