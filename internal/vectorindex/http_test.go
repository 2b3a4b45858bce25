package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateway_Store(t *testing.T) {
	learningID := uuid.New()
	intent := "greeting"
	phone := "+5491100000000"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/store", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, learningID.String(), body["id"])
		assert.Equal(t, "hola", body["user_message"])
		assert.Equal(t, "¡Hola! ¿En qué te ayudo?", body["bot_response"])
		assert.Equal(t, intent, body["intent"])
		assert.Equal(t, phone, body["user_phone"])
		assert.NotContains(t, body, "was_helpful")

		_, _ = w.Write([]byte(`{"success":true,"vector_id":"` + learningID.String() + `","message":"ok"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(HTTPOptions{BaseURL: srv.URL})

	vectorID, err := g.Store(context.Background(), StoreRequest{
		LearningID:  learningID,
		UserMessage: "hola",
		BotResponse: "¡Hola! ¿En qué te ayudo?",
		Intent:      &intent,
		OriginID:    &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, learningID.String(), vectorID)
}

func TestHTTPGateway_StoreRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"vector_id":"","message":"collection full"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(HTTPOptions{BaseURL: srv.URL}).Store(context.Background(), StoreRequest{LearningID: uuid.New()})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "collection full")
}

func TestHTTPGateway_Update(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/update/vec-1", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("was_helpful"))

		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	require.NoError(t, NewHTTPGateway(HTTPOptions{BaseURL: srv.URL}).Update(context.Background(), "vec-1", false))
}

func TestHTTPGateway_DeleteTreatsNotFoundAsDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, NewHTTPGateway(HTTPOptions{BaseURL: srv.URL}).Delete(context.Background(), "gone"))
}

func TestHTTPGateway_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)

		var body httpSearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refund", body.Query)
		assert.Equal(t, 3, body.NResults)
		if assert.NotNil(t, body.FilterHelpful) {
			assert.True(t, *body.FilterHelpful)
		}

		_, _ = w.Write([]byte(`{
			"results": [
				{"id":"a","user_message":"refund?","bot_response":"Sure","similarity":0.93,"was_helpful":true,"metadata":{"intent":"refund"}},
				{"id":"b","user_message":"money back","bot_response":"Yes","similarity":0.71,"was_helpful":null,"metadata":{}}
			],
			"query": "refund",
			"total_found": 2
		}`))
	}))
	defer srv.Close()

	helpful := true

	resp, err := NewHTTPGateway(HTTPOptions{BaseURL: srv.URL}).Search(context.Background(), SearchRequest{
		Query: "refund", Limit: 3, Helpful: &helpful,
	})
	require.NoError(t, err)
	require.Len(t, resp.Matches, 2)
	assert.Equal(t, "a", resp.Matches[0].ID)
	assert.InDelta(t, 0.93, resp.Matches[0].Similarity, 1e-9)
	require.NotNil(t, resp.Matches[0].WasHelpful)
	assert.True(t, *resp.Matches[0].WasHelpful)
	assert.Nil(t, resp.Matches[1].WasHelpful)
	assert.Equal(t, 2, resp.TotalFound)
}

func TestHTTPGateway_ServerErrorIsRetriedThenUnavailable(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewHTTPGateway(HTTPOptions{BaseURL: srv.URL, RetryMax: 2})

	_, err := g.Search(context.Background(), SearchRequest{Query: "q", Limit: 1})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPGateway_Stats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"total_embeddings":12,"collection_name":"conversations"}`))
	}))
	defer srv.Close()

	stats, err := NewHTTPGateway(HTTPOptions{BaseURL: srv.URL}).Stats(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12, stats["total_embeddings"], 0)
}
