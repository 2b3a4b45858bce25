// Package vectorindex is the gateway to the semantic vector index that mirrors learning records.
// The index is a derived projection: every failure is reported as ErrUnavailable and callers
// treat it as a degraded dependency, never as a reason to reject a write.
package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable wraps every gateway failure (transport, timeout, backend error, panic).
	ErrUnavailable = errors.New("vector index unavailable")
	// ErrDisabled is returned by the Disabled gateway. It wraps ErrUnavailable.
	ErrDisabled = fmt.Errorf("%w: no backend configured", ErrUnavailable)
)

// StoreRequest is one exchange to index. The user message is the embedded text; the bot response
// travels as the stored document.
type StoreRequest struct {
	LearningID  uuid.UUID
	UserMessage string
	BotResponse string
	WasHelpful  *bool
	Intent      *string
	Category    *string
	OriginID    *string
}

// SearchRequest asks for the Limit entries most similar to Query. Helpful optionally restricts
// matches to entries whose helpful flag equals it.
type SearchRequest struct {
	Query   string
	Limit   int
	Helpful *bool
}

// Match is one search hit, most similar first in SearchResponse.Matches.
type Match struct {
	ID          string         `json:"id"`
	UserMessage string         `json:"user_message"`
	BotResponse string         `json:"bot_response"`
	Similarity  float64        `json:"similarity"`
	WasHelpful  *bool          `json:"was_helpful"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SearchResponse is the ordered result of a similarity query.
type SearchResponse struct {
	Matches    []Match `json:"results"`
	Query      string  `json:"query"`
	TotalFound int     `json:"total_found"`
}

// Gateway is the vector index contract used by the services.
type Gateway interface {
	// Store indexes an exchange and returns its vector id.
	Store(ctx context.Context, req StoreRequest) (string, error)
	// Update sets the helpful flag on an existing entry.
	Update(ctx context.Context, vectorID string, helpful bool) error
	// Delete removes an entry. Deleting an unknown id is not an error.
	Delete(ctx context.Context, vectorID string) error
	// Search returns the entries most similar to the query.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// StatsReporter is implemented by gateways that can describe their index.
type StatsReporter interface {
	Stats(ctx context.Context) (map[string]any, error)
}

// Disabled is the gateway used when no backend is configured.
type Disabled struct{}

// Store implements Gateway.
func (Disabled) Store(context.Context, StoreRequest) (string, error) { return "", ErrDisabled }

// Update implements Gateway.
func (Disabled) Update(context.Context, string, bool) error { return ErrDisabled }

// Delete implements Gateway.
func (Disabled) Delete(context.Context, string) error { return ErrDisabled }

// Search implements Gateway.
func (Disabled) Search(context.Context, SearchRequest) (*SearchResponse, error) { return nil, ErrDisabled }

// metadataOf builds the match metadata shared by the in-process backends.
func metadataOf(learningID string, intent, category, originID *string) map[string]any {
	md := map[string]any{"learning_id": learningID}

	if intent != nil {
		md["intent"] = *intent
	}

	if category != nil {
		md["category"] = *category
	}

	if originID != nil {
		md["origin_id"] = *originID
	}

	return md
}
