// Package embeddings turns text into embedding vectors through a pluggable provider
// (OpenAI, Google Gemini or a local Ollama server), with optional caching and rate limiting.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderOllama = "ollama"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("embeddings: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("embeddings: dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the provider response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("embeddings: no embedding in response")
	// ErrDimensionMismatch is returned when the response length does not match the configured dimensions.
	ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")
	// ErrUnsupportedProvider is returned by New for unknown provider names.
	ErrUnsupportedProvider = errors.New("embeddings: unsupported provider")
)

// Client generates embedding vectors for text.
type Client interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	Dimensions int
	// OllamaURL is only used by the ollama provider.
	OllamaURL string
}

// New builds the provider client named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, WithOpenAIModel(cfg.Model), WithOpenAIDimensions(cfg.Dimensions)), nil
	case ProviderGoogle:
		return NewGoogleClient(ctx, cfg.APIKey, WithGoogleModel(cfg.Model), WithGoogleDimensions(cfg.Dimensions))
	case ProviderOllama:
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.OllamaURL, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// checkDimensions copies emb to float32 after checking it has the wanted length.
func checkDimensions[T float32 | float64](emb []T, want int) ([]float32, error) {
	if len(emb) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	if want > 0 && len(emb) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), want)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}
