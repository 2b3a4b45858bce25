package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
	ollamaTimeout      = 60 * time.Second
	ollamaRetryMax     = 2
)

// OllamaConfig configures the OllamaClient. Empty fields use defaults.
type OllamaConfig struct {
	BaseURL  string
	Model    string
	RetryMax int
	Timeout  time.Duration
}

// OllamaClient calls a local Ollama server's /api/embed endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *retryablehttp.Client
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaClient creates an Ollama embeddings client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}

	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = ollamaTimeout
	}

	if cfg.RetryMax == 0 {
		cfg.RetryMax = ollamaRetryMax
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil

	return &OllamaClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: retryClient,
	}
}

// CreateEmbedding returns the embedding vector for input.
func (c *OllamaClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf("ollama embedding: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama embedding: decode response: %w", err)
	}

	if len(out.Embeddings) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	return checkDimensions(out.Embeddings[0], 0)
}
