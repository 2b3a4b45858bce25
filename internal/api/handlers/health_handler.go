// Package handlers implements the HTTP handlers of the learning hub API.
package handlers

import (
	"net/http"

	"github.com/chatpanel/learning-hub/internal/api/response"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorIndex string `json:"vector_index"`
}

// HealthHandler handles liveness checks. It does not touch the database or the vector index.
type HealthHandler struct {
	vectorIndex string
}

// NewHealthHandler creates a health handler reporting the configured vector index backend.
func NewHealthHandler(vectorIndexBackend string) *HealthHandler {
	if vectorIndexBackend == "" {
		vectorIndexBackend = "disabled"
	}

	return &HealthHandler{vectorIndex: vectorIndexBackend}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, HealthResponse{Status: "ok", VectorIndex: h.vectorIndex})
}
