package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chatpanel/learning-hub/internal/api/response"
	"github.com/chatpanel/learning-hub/internal/jobs"
)

// Reindexer enqueues reindex jobs for learning records without a vector id.
type Reindexer interface {
	EnqueueMissing(ctx context.Context) (*jobs.ReindexStats, error)
}

// ReindexHandler handles HTTP requests that trigger vector index reconciliation.
type ReindexHandler struct {
	reindexer Reindexer
}

// NewReindexHandler creates a reindex handler. reindexer is nil when background jobs are disabled.
func NewReindexHandler(reindexer Reindexer) *ReindexHandler {
	return &ReindexHandler{reindexer: reindexer}
}

// Reindex handles POST /v1/learning-records/reindex.
// Responds 202 with the enqueue counts; jobs run asynchronously.
func (h *ReindexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.reindexer == nil {
		response.RespondServiceUnavailable(w, "Background jobs are disabled")

		return
	}

	stats, err := h.reindexer.EnqueueMissing(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "reindex enqueue failed", "error", err)
		response.RespondInternalServerError(w, "Failed to enqueue reindex jobs")

		return
	}

	response.RespondJSON(w, http.StatusAccepted, stats)
}
