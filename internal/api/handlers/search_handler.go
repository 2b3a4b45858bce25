package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chatpanel/learning-hub/internal/api/response"
	"github.com/chatpanel/learning-hub/internal/service"
)

// SearchService defines the interface for semantic retrieval over learning records.
type SearchService interface {
	Search(ctx context.Context, query string, resultCount int, helpful *bool) (service.SearchResult, error)
}

// SearchHandler handles HTTP requests for semantic retrieval.
type SearchHandler struct {
	service SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchRequest is the body for POST /v1/learning-records/search.
type SearchRequest struct {
	Query         string `json:"query"`
	NResults      int    `json:"n_results"`
	FilterHelpful *bool  `json:"filter_helpful"`
}

// Search handles POST /v1/learning-records/search.
// A degraded index still answers 200 with empty results and a warning.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	h.search(w, r, req)
}

// SearchQuery handles GET /v1/learning-records/search?q=&n=&helpful=.
func (h *SearchHandler) SearchQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := SearchRequest{Query: query.Get("q")}

	if nStr := query.Get("n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil {
			response.RespondBadRequest(w, "Invalid n parameter")

			return
		}

		req.NResults = n
	}

	if helpfulStr := query.Get("helpful"); helpfulStr != "" {
		helpful, err := strconv.ParseBool(helpfulStr)
		if err != nil {
			response.RespondBadRequest(w, "Invalid helpful parameter, use true or false")

			return
		}

		req.FilterHelpful = &helpful
	}

	h.search(w, r, req)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, req SearchRequest) {
	result, err := h.service.Search(r.Context(), req.Query, req.NResults, req.FilterHelpful)
	if err != nil {
		respondServiceError(w, r, err, "Not found")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
