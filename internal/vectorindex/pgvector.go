package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chatpanel/learning-hub/internal/embeddings"
	"github.com/chatpanel/learning-hub/internal/repository"
)

// EmbeddingStore is the pgvector persistence used by PgvectorGateway.
// Implemented by repository.LearningEmbeddingsRepository.
type EmbeddingStore interface {
	Upsert(ctx context.Context, learningID uuid.UUID, model string, embedding []float32, helpful *bool) error
	SetHelpful(ctx context.Context, learningID uuid.UUID, model string, helpful bool) error
	Delete(ctx context.Context, learningID uuid.UUID, model string) error
	Nearest(ctx context.Context, model string, queryEmbedding []float32, limit int, helpful *bool) ([]repository.ScoredLearning, error)
	CountByModel(ctx context.Context, model string) (int64, error)
}

// PgvectorGateway keeps embeddings in PostgreSQL next to the learning records.
// The vector id of an entry is its learning record id.
type PgvectorGateway struct {
	store    EmbeddingStore
	embedder embeddings.Client
	model    string
}

// NewPgvectorGateway creates a gateway storing embeddings produced by embedder under model.
func NewPgvectorGateway(store EmbeddingStore, embedder embeddings.Client, model string) *PgvectorGateway {
	return &PgvectorGateway{store: store, embedder: embedder, model: model}
}

// Store implements Gateway.
func (g *PgvectorGateway) Store(ctx context.Context, req StoreRequest) (string, error) {
	vec, err := g.embedder.CreateEmbedding(ctx, req.UserMessage)
	if err != nil {
		return "", fmt.Errorf("embed learning record: %w", err)
	}

	if err := g.store.Upsert(ctx, req.LearningID, g.model, vec, req.WasHelpful); err != nil {
		return "", err
	}

	return req.LearningID.String(), nil
}

// Update implements Gateway.
func (g *PgvectorGateway) Update(ctx context.Context, vectorID string, helpful bool) error {
	id, err := uuid.Parse(vectorID)
	if err != nil {
		return fmt.Errorf("invalid vector id %q: %w", vectorID, err)
	}

	return g.store.SetHelpful(ctx, id, g.model, helpful)
}

// Delete implements Gateway.
func (g *PgvectorGateway) Delete(ctx context.Context, vectorID string) error {
	id, err := uuid.Parse(vectorID)
	if err != nil {
		return fmt.Errorf("invalid vector id %q: %w", vectorID, err)
	}

	return g.store.Delete(ctx, id, g.model)
}

// Search implements Gateway.
func (g *PgvectorGateway) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vec, err := g.embedder.CreateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := g.store.Nearest(ctx, g.model, vec, req.Limit, req.Helpful)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		id := row.LearningID.String()
		matches = append(matches, Match{
			ID:          id,
			UserMessage: row.UserMessage,
			BotResponse: row.BotResponse,
			Similarity:  row.Score,
			WasHelpful:  row.WasHelpful,
			Metadata:    metadataOf(id, row.Intent, row.Category, nil),
		})
	}

	return &SearchResponse{Matches: matches, Query: req.Query, TotalFound: len(matches)}, nil
}

// Stats implements StatsReporter.
func (g *PgvectorGateway) Stats(ctx context.Context) (map[string]any, error) {
	count, err := g.store.CountByModel(ctx, g.model)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"backend":          "pgvector",
		"embedding_model":  g.model,
		"total_embeddings": count,
	}, nil
}
