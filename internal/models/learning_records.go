package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LearningRecord is one captured user/bot exchange kept for retrieval and scoring.
// VectorID is nil until the exchange has been indexed; a record without it is still complete.
type LearningRecord struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID *string         `json:"conversation_id,omitempty"`
	UserMessage    string          `json:"user_message"`
	BotResponse    string          `json:"bot_response"`
	Intent         *string         `json:"intent,omitempty"`
	Category       *string         `json:"category,omitempty"`
	OriginID       *string         `json:"origin_id,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
	ResponseTimeMs *float64        `json:"response_time_ms,omitempty"`
	WasHelpful     *bool           `json:"was_helpful"`
	HelpfulScore   *float64        `json:"helpful_score"`
	VectorID       *string         `json:"vector_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateLearningRecordRequest is the exchange payload accepted by ingestion.
// Context is opaque: it is stored and returned verbatim.
type CreateLearningRecordRequest struct {
	ConversationID *string         `json:"conversation_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	UserMessage    string          `json:"user_message" validate:"required,no_null_bytes"`
	BotResponse    string          `json:"bot_response" validate:"required,no_null_bytes"`
	WasHelpful     *bool           `json:"was_helpful,omitempty"`
	Intent         *string         `json:"intent,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Category       *string         `json:"category,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	OriginID       *string         `json:"origin_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Context        json.RawMessage `json:"context,omitempty"`
	ResponseTimeMs *float64        `json:"response_time_ms,omitempty" validate:"omitempty,gte=0"`
}

// ListLearningRecordsFilters represents filters for listing learning records
type ListLearningRecordsFilters struct {
	WasHelpful     *bool   `form:"helpful"`
	Intent         *string `form:"intent" validate:"omitempty,no_null_bytes"`
	Category       *string `form:"category" validate:"omitempty,no_null_bytes"`
	ConversationID *string `form:"conversation_id" validate:"omitempty,no_null_bytes"`
	HasVector      *bool   `form:"has_vector"`
	Limit          int     `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset         int     `form:"offset" validate:"omitempty,min=0,max=2147483647"`
}

// ListLearningRecordsResponse represents the response for listing learning records
type ListLearningRecordsResponse struct {
	Data    []LearningRecord `json:"data"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"has_more"`
}

// LabelCount is one row of a group-by count (category, intent, feedback type).
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// HelpfulnessCounts splits learning records by their tri-state helpfulness flag.
type HelpfulnessCounts struct {
	Total      int64 `json:"total"`
	Helpful    int64 `json:"helpful"`
	NotHelpful int64 `json:"not_helpful"`
	Pending    int64 `json:"pending"`
}
