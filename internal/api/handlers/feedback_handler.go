package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chatpanel/learning-hub/internal/api/response"
	"github.com/chatpanel/learning-hub/internal/api/validation"
	"github.com/chatpanel/learning-hub/internal/models"
)

// FeedbackService defines the interface for feedback business logic.
type FeedbackService interface {
	RecordFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.FeedbackRecord, error)
	ListFeedback(ctx context.Context, filters *models.ListFeedbackFilters) (*models.ListFeedbackResponse, error)
}

// FeedbackHandler handles HTTP requests for feedback events.
type FeedbackHandler struct {
	service FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(service FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Create handles POST /v1/feedback.
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	record, err := h.service.RecordFeedback(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err, "Learning record not found")

		return
	}

	response.RespondJSON(w, http.StatusCreated, record)
}

// List handles GET /v1/feedback.
// Filters: feedback_type, conversation_id, learning_id, limit, offset.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListFeedbackFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	result, err := h.service.ListFeedback(r.Context(), filters)
	if err != nil {
		respondServiceError(w, r, err, "Feedback not found")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
