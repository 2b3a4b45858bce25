package handlers

import (
	"context"
	"net/http"

	"github.com/chatpanel/learning-hub/internal/api/response"
	"github.com/chatpanel/learning-hub/internal/models"
)

// StatsService defines the interface for the learning stats overview.
type StatsService interface {
	Overview(ctx context.Context) (*models.LearningStatsOverview, error)
}

// StatsHandler handles HTTP requests for learning statistics.
type StatsHandler struct {
	service StatsService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(service StatsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Overview handles GET /v1/learning-stats.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "Stats not found")

		return
	}

	response.RespondJSON(w, http.StatusOK, overview)
}
