package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/chatpanel/learning-hub/internal/api/response"
	"github.com/chatpanel/learning-hub/internal/api/validation"
	"github.com/chatpanel/learning-hub/internal/models"
)

// LearningRecordsService defines the interface for learning record business logic.
type LearningRecordsService interface {
	Ingest(ctx context.Context, req *models.CreateLearningRecordRequest) (*models.LearningRecord, error)
	GetLearningRecord(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error)
	ListLearningRecords(ctx context.Context, filters *models.ListLearningRecordsFilters) (
		*models.ListLearningRecordsResponse, error)
	DeleteLearningRecord(ctx context.Context, id uuid.UUID) error
}

// LearningRecordsHandler handles HTTP requests for learning records.
type LearningRecordsHandler struct {
	service LearningRecordsService
}

// NewLearningRecordsHandler creates a new learning records handler.
func NewLearningRecordsHandler(service LearningRecordsService) *LearningRecordsHandler {
	return &LearningRecordsHandler{service: service}
}

// Create handles POST /v1/learning-records.
// The record is stored even when the vector index is down; vector_id is then null.
func (h *LearningRecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLearningRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	record, err := h.service.Ingest(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err, "Learning record not found")

		return
	}

	response.RespondJSON(w, http.StatusCreated, record)
}

// Get handles GET /v1/learning-records/{id}.
func (h *LearningRecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	record, err := h.service.GetLearningRecord(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "Learning record not found")

		return
	}

	response.RespondJSON(w, http.StatusOK, record)
}

// List handles GET /v1/learning-records.
// Filters: helpful, intent, category, conversation_id, has_vector, limit, offset.
func (h *LearningRecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListLearningRecordsFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	result, err := h.service.ListLearningRecords(r.Context(), filters)
	if err != nil {
		respondServiceError(w, r, err, "Learning record not found")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /v1/learning-records/{id}.
// The vector index entry is removed best-effort; its failure does not fail the request.
func (h *LearningRecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteLearningRecord(r.Context(), id); err != nil {
		respondServiceError(w, r, err, "Learning record not found")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
