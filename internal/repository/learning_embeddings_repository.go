package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/chatpanel/learning-hub/internal/huberrors"
)

// ScoredLearning is one nearest-neighbour hit joined with its learning record.
type ScoredLearning struct {
	LearningID  uuid.UUID
	UserMessage string
	BotResponse string
	Intent      *string
	Category    *string
	WasHelpful  *bool
	Score       float64
}

// LearningEmbeddingsRepository handles data access for the learning_embeddings table.
type LearningEmbeddingsRepository struct {
	db *pgxpool.Pool
}

// NewLearningEmbeddingsRepository creates a new learning embeddings repository.
func NewLearningEmbeddingsRepository(db *pgxpool.Pool) *LearningEmbeddingsRepository {
	return &LearningEmbeddingsRepository{db: db}
}

// Upsert inserts or replaces the embedding for (learning_id, model).
// Uses halfvec storage (2 bytes per dimension); pgvector-go converts float32 to float16 when encoding.
func (r *LearningEmbeddingsRepository) Upsert(
	ctx context.Context, learningID uuid.UUID, model string, embedding []float32, helpful *bool,
) error {
	vec := pgvector.NewHalfVector(embedding)
	now := time.Now()

	_, err := r.db.Exec(ctx, `
		INSERT INTO learning_embeddings (learning_id, model, embedding, was_helpful, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (learning_id, model)
		DO UPDATE SET embedding = EXCLUDED.embedding, was_helpful = EXCLUDED.was_helpful, updated_at = $5`,
		learningID, model, vec, helpful, now,
	)
	if err != nil {
		return fmt.Errorf("learning embeddings upsert: %w", err)
	}

	return nil
}

// SetHelpful updates the helpful flag stored beside the embedding.
func (r *LearningEmbeddingsRepository) SetHelpful(
	ctx context.Context, learningID uuid.UUID, model string, helpful bool,
) error {
	result, err := r.db.Exec(ctx,
		`UPDATE learning_embeddings SET was_helpful = $1, updated_at = $2 WHERE learning_id = $3 AND model = $4`,
		helpful, time.Now(), learningID, model,
	)
	if err != nil {
		return fmt.Errorf("learning embeddings set helpful: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("learning embedding", "learning embedding not found")
	}

	return nil
}

// Delete removes the embedding row for the given learning record and model.
func (r *LearningEmbeddingsRepository) Delete(ctx context.Context, learningID uuid.UUID, model string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM learning_embeddings WHERE learning_id = $1 AND model = $2`,
		learningID, model,
	)
	if err != nil {
		return fmt.Errorf("learning embeddings delete: %w", err)
	}

	return nil
}

// Nearest returns the learning records closest to queryEmbedding by cosine distance (<=>),
// most similar first; score = 1 - distance. helpful optionally restricts to one helpful value.
func (r *LearningEmbeddingsRepository) Nearest(
	ctx context.Context, model string, queryEmbedding []float32, limit int, helpful *bool,
) ([]ScoredLearning, error) {
	query, args := nearestQuery(pgvector.NewHalfVector(queryEmbedding), model, limit, helpful)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest learning records: %w", err)
	}
	defer rows.Close()

	var results []ScoredLearning

	for rows.Next() {
		var row ScoredLearning
		if err := rows.Scan(
			&row.LearningID, &row.UserMessage, &row.BotResponse, &row.Intent, &row.Category, &row.WasHelpful, &row.Score,
		); err != nil {
			return nil, fmt.Errorf("scan learning record with score: %w", err)
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nearest: %w", err)
	}

	return results, nil
}

const nearestSelect = `
	SELECT lr.id, lr.user_message, lr.bot_response, lr.intent, lr.category, e.was_helpful,
		(1 - (e.embedding <=> $1)) AS score
	FROM learning_embeddings e
	INNER JOIN learning_records lr ON lr.id = e.learning_id
	WHERE e.model = $2`

// nearestQuery builds the similarity query. Equal distances are broken by learning id so
// repeated searches return the same order.
func nearestQuery(queryVec pgvector.HalfVector, model string, limit int, helpful *bool) (string, []any) {
	args := []any{queryVec, model}
	query := nearestSelect

	if helpful != nil {
		args = append(args, *helpful)
		query += fmt.Sprintf(" AND e.was_helpful = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(`
	ORDER BY e.embedding <=> $1, e.learning_id
	LIMIT $%d`, len(args))

	return query, args
}

// CountByModel returns how many embeddings exist for model.
func (r *LearningEmbeddingsRepository) CountByModel(ctx context.Context, model string) (int64, error) {
	var count int64

	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM learning_embeddings WHERE model = $1`, model).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count learning embeddings: %w", err)
	}

	return count, nil
}
