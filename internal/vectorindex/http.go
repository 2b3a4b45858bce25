package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPOptions configures the HTTP gateway.
type HTTPOptions struct {
	// BaseURL of the embeddings service, e.g. http://localhost:8001.
	BaseURL string
	// RetryMax is the number of retries on transport errors and 5xx responses.
	RetryMax int
	// Timeout bounds each attempt.
	Timeout time.Duration
}

// HTTPGateway talks to an external embeddings service that owns both the embedding model
// and the vector store.
type HTTPGateway struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewHTTPGateway creates a gateway for the embeddings service at opts.BaseURL.
func NewHTTPGateway(opts HTTPOptions) *HTTPGateway {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = 500 * time.Millisecond
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &HTTPGateway{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: retryClient,
	}
}

type httpStoreRequest struct {
	ID          string  `json:"id"`
	UserMessage string  `json:"user_message"`
	BotResponse string  `json:"bot_response"`
	WasHelpful  *bool   `json:"was_helpful,omitempty"`
	Intent      *string `json:"intent,omitempty"`
	Category    *string `json:"category,omitempty"`
	UserPhone   *string `json:"user_phone,omitempty"`
}

type httpStoreResponse struct {
	Success  bool   `json:"success"`
	VectorID string `json:"vector_id"`
	Message  string `json:"message"`
}

type httpSearchRequest struct {
	Query         string `json:"query"`
	NResults      int    `json:"n_results"`
	FilterHelpful *bool  `json:"filter_helpful,omitempty"`
}

// Store implements Gateway via POST /store.
func (g *HTTPGateway) Store(ctx context.Context, req StoreRequest) (string, error) {
	var out httpStoreResponse

	err := g.do(ctx, http.MethodPost, "/store", httpStoreRequest{
		ID:          req.LearningID.String(),
		UserMessage: req.UserMessage,
		BotResponse: req.BotResponse,
		WasHelpful:  req.WasHelpful,
		Intent:      req.Intent,
		Category:    req.Category,
		UserPhone:   req.OriginID,
	}, &out)
	if err != nil {
		return "", err
	}

	if !out.Success || out.VectorID == "" {
		return "", fmt.Errorf("%w: store rejected: %s", ErrUnavailable, out.Message)
	}

	return out.VectorID, nil
}

// Update implements Gateway via PUT /update/{vector_id}?was_helpful=.
func (g *HTTPGateway) Update(ctx context.Context, vectorID string, helpful bool) error {
	path := "/update/" + url.PathEscape(vectorID) + "?was_helpful=" + strconv.FormatBool(helpful)

	return g.do(ctx, http.MethodPut, path, nil, nil)
}

// Delete implements Gateway via DELETE /delete/{vector_id}. A 404 counts as already deleted.
func (g *HTTPGateway) Delete(ctx context.Context, vectorID string) error {
	err := g.do(ctx, http.MethodDelete, "/delete/"+url.PathEscape(vectorID), nil, nil)

	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
		return nil
	}

	return err
}

// Search implements Gateway via POST /search.
func (g *HTTPGateway) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse

	err := g.do(ctx, http.MethodPost, "/search", httpSearchRequest{
		Query:         req.Query,
		NResults:      req.Limit,
		FilterHelpful: req.Helpful,
	}, &out)
	if err != nil {
		return nil, err
	}

	if out.Matches == nil {
		out.Matches = []Match{}
	}

	return &out, nil
}

// Stats implements StatsReporter via GET /stats.
func (g *HTTPGateway) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any

	if err := g.do(ctx, http.MethodGet, "/stats", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embeddings service returned status %d: %s", e.code, e.body)
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (g *HTTPGateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: marshal request: %w", ErrUnavailable, err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrUnavailable, err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("%w: %w", ErrUnavailable, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))})
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	return nil
}
