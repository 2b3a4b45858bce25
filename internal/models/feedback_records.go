package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidFeedbackType is returned by ParseFeedbackType for unknown kinds.
var ErrInvalidFeedbackType = errors.New("invalid feedback type")

// FeedbackType is the kind of a feedback event.
type FeedbackType string

// Feedback kinds as stored and exchanged on the wire.
const (
	FeedbackTypeThumbsUp   FeedbackType = "thumbs_up"
	FeedbackTypeThumbsDown FeedbackType = "thumbs_down"
	FeedbackTypeStarRating FeedbackType = "star_rating"
	FeedbackTypeFlag       FeedbackType = "flag"
	FeedbackTypeComment    FeedbackType = "comment"
)

// Rating bounds for star_rating feedback, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// helpfulRatingThreshold is the lowest star rating that counts as helpful.
const helpfulRatingThreshold = 4

// feedbackTypeAliases maps accepted input spellings to their stored kind.
var feedbackTypeAliases = map[string]FeedbackType{
	"thumbs_up":   FeedbackTypeThumbsUp,
	"approval":    FeedbackTypeThumbsUp,
	"thumbs_down": FeedbackTypeThumbsDown,
	"disapproval": FeedbackTypeThumbsDown,
	"star_rating": FeedbackTypeStarRating,
	"flag":        FeedbackTypeFlag,
	"comment":     FeedbackTypeComment,
}

// AllFeedbackTypes returns the stored feedback kinds in display order.
func AllFeedbackTypes() []FeedbackType {
	return []FeedbackType{
		FeedbackTypeThumbsUp,
		FeedbackTypeThumbsDown,
		FeedbackTypeStarRating,
		FeedbackTypeFlag,
		FeedbackTypeComment,
	}
}

// ParseFeedbackType normalises s (case-insensitive, aliases allowed) to a stored kind.
func ParseFeedbackType(s string) (FeedbackType, error) {
	ft, ok := feedbackTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeedbackType, s)
	}

	return ft, nil
}

// IsValid reports whether ft is one of the stored kinds.
func (ft FeedbackType) IsValid() bool {
	switch ft {
	case FeedbackTypeThumbsUp, FeedbackTypeThumbsDown, FeedbackTypeStarRating, FeedbackTypeFlag, FeedbackTypeComment:
		return true
	default:
		return false
	}
}

// String returns the stored form of the kind.
func (ft FeedbackType) String() string {
	return string(ft)
}

// HelpfulSignal derives the helpful judgement carried by a feedback event.
// Returns nil for kinds that carry no judgement (flag, comment) and for a star rating without a value.
func HelpfulSignal(ft FeedbackType, rating *int) *bool {
	var helpful bool

	switch ft {
	case FeedbackTypeThumbsUp:
		helpful = true
	case FeedbackTypeThumbsDown:
		helpful = false
	case FeedbackTypeStarRating:
		if rating == nil {
			return nil
		}

		helpful = *rating >= helpfulRatingThreshold
	default:
		return nil
	}

	return &helpful
}

// FeedbackRecord is one append-only feedback event.
type FeedbackRecord struct {
	ID             uuid.UUID    `json:"id"`
	LearningID     *uuid.UUID   `json:"learning_id,omitempty"`
	ConversationID *string      `json:"conversation_id,omitempty"`
	MessageID      *string      `json:"message_id,omitempty"`
	FeedbackType   FeedbackType `json:"feedback_type"`
	Rating         *int         `json:"rating,omitempty"`
	Comment        *string      `json:"comment,omitempty"`
	OriginID       *string      `json:"origin_id,omitempty"`
	Source         string       `json:"source"`
	CreatedAt      time.Time    `json:"created_at"`
}

// CreateFeedbackRequest is the feedback event payload.
// FeedbackType is kept as the raw input string so the service can report unknown kinds itself.
type CreateFeedbackRequest struct {
	LearningID     *uuid.UUID `json:"learning_id,omitempty"`
	ConversationID *string    `json:"conversation_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	MessageID      *string    `json:"message_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	FeedbackType   string     `json:"feedback_type" validate:"required,feedback_type"`
	Rating         *int       `json:"rating,omitempty"`
	Comment        *string    `json:"comment,omitempty" validate:"omitempty,max=4000,no_null_bytes"`
	OriginID       *string    `json:"origin_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Source         string     `json:"source,omitempty" validate:"omitempty,max=64,no_null_bytes"`
}

// ListFeedbackFilters represents filters for listing feedback records
type ListFeedbackFilters struct {
	FeedbackType   *FeedbackType `form:"feedback_type"`
	ConversationID *string       `form:"conversation_id" validate:"omitempty,no_null_bytes"`
	LearningID     *uuid.UUID    `form:"learning_id"`
	Limit          int           `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset         int           `form:"offset" validate:"omitempty,min=0,max=2147483647"`
}

// ListFeedbackResponse represents the response for listing feedback records, with a count per kind.
type ListFeedbackResponse struct {
	Data    []FeedbackRecord `json:"data"`
	Summary map[string]int64 `json:"summary"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"has_more"`
}
