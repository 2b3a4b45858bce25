package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpanel/learning-hub/internal/observability"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAuth(t *testing.T) {
	h := Auth("secret-key")(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret-key", http.StatusUnauthorized},
		{"empty key", "Bearer ", http.StatusUnauthorized},
		{"wrong key", "Bearer other", http.StatusUnauthorized},
		{"valid key", "Bearer secret-key", http.StatusNoContent},
		{"scheme is case-insensitive", "bearer secret-key", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/learning-records", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)

			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string

	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = observability.RequestID(r.Context())
	}))

	t.Run("propagates client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("X-Request-ID", "client-id")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "client-id", seen)
		assert.Equal(t, "client-id", rec.Header().Get("X-Request-ID"))
	})

	t.Run("replaces malformed client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("X-Request-ID", "has space\nand newline")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.NotEqual(t, "has space\nand newline", seen)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("generates id when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})
}

type bodyTooLargeCounter struct{ calls int }

func (c *bodyTooLargeCounter) RecordRequestBodyTooLarge(context.Context) { c.calls++ }

func TestMaxBody(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)

			return
		}

		w.WriteHeader(http.StatusCreated)
	})

	t.Run("rejects oversized body with 413", func(t *testing.T) {
		counter := &bodyTooLargeCounter{}
		h := MaxBody(8, counter)(readAll)

		req := httptest.NewRequest(http.MethodPost, "/v1/feedback", strings.NewReader(strings.Repeat("x", 64)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 1, counter.calls)
	})

	t.Run("rejects oversized chunked body found while reading", func(t *testing.T) {
		counter := &bodyTooLargeCounter{}
		h := MaxBody(8, counter)(readAll)

		req := httptest.NewRequest(http.MethodPost, "/v1/learning-records", strings.NewReader(strings.Repeat("x", 64)))
		req.ContentLength = -1

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.NotContains(t, rec.Body.String(), "bad body")
		assert.Equal(t, 1, counter.calls)
	})

	t.Run("passes small body through", func(t *testing.T) {
		h := MaxBody(64, nil)(readAll)

		req := httptest.NewRequest(http.MethodPost, "/v1/feedback", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("non-positive limit disables the check", func(t *testing.T) {
		h := MaxBody(0, nil)(readAll)

		req := httptest.NewRequest(http.MethodPost, "/v1/feedback", strings.NewReader(strings.Repeat("x", 64)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

type recordedRequest struct {
	method, route, statusClass string
}

type apiMetricsRecorder struct{ requests []recordedRequest }

func (m *apiMetricsRecorder) RecordRequest(_ context.Context, method, route, statusClass string, _ time.Duration) {
	m.requests = append(m.requests, recordedRequest{method, route, statusClass})
}

func (m *apiMetricsRecorder) RecordRequestBodyTooLarge(context.Context) {}

func TestMetrics(t *testing.T) {
	recorder := &apiMetricsRecorder{}
	h := Metrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/learning-records/550e8400-e29b-41d4-a716-446655440000", http.NoBody)
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, recordedRequest{http.MethodGet, "/v1/learning-records/{id}", "4xx"}, recorder.requests[0])
}

func TestStatusToClass(t *testing.T) {
	assert.Equal(t, "2xx", statusToClass(http.StatusCreated))
	assert.Equal(t, "3xx", statusToClass(http.StatusFound))
	assert.Equal(t, "4xx", statusToClass(http.StatusBadRequest))
	assert.Equal(t, "5xx", statusToClass(http.StatusServiceUnavailable))
	assert.Equal(t, "unknown", statusToClass(0))
}

func TestLogging_RecordsStatus(t *testing.T) {
	var captured *responseWriter

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		captured, _ = w.(*responseWriter)
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/learning-records/reindex", http.NoBody))

	require.NotNil(t, captured)
	assert.Equal(t, http.StatusAccepted, captured.statusCode)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestValidRequestID(t *testing.T) {
	assert.True(t, validRequestID("0192f3a4-7c1e-7a3b-9d2e-5f6a7b8c9d0e"))
	assert.True(t, validRequestID("trace:abc/123"))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("with space"))
	assert.False(t, validRequestID("tab\there"))
	assert.False(t, validRequestID("café"))
	assert.False(t, validRequestID(strings.Repeat("a", 129)))
	assert.True(t, validRequestID(strings.Repeat("a", 128)))
}
