// Package repository provides data access for learning records, feedback records and daily stats.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/models"
)

const learningRecordColumns = `id, conversation_id, user_message, bot_response,
	intent, category, origin_id, context, response_time_ms,
	was_helpful, helpful_score, vector_id, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLearningRecord(row rowScanner) (*models.LearningRecord, error) {
	var (
		record     models.LearningRecord
		contextDoc []byte
	)

	err := row.Scan(
		&record.ID, &record.ConversationID, &record.UserMessage, &record.BotResponse,
		&record.Intent, &record.Category, &record.OriginID, &contextDoc, &record.ResponseTimeMs,
		&record.WasHelpful, &record.HelpfulScore, &record.VectorID, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(contextDoc) > 0 {
		record.Context = json.RawMessage(contextDoc)
	}

	return &record, nil
}

// jsonArg passes an opaque JSON document through unchanged; empty means NULL.
// The column is json, not jsonb, so the bytes come back exactly as sent.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return []byte(raw)
}

// LearningRecordsRepository handles data access for learning records.
type LearningRecordsRepository struct {
	db *pgxpool.Pool
}

// NewLearningRecordsRepository creates a new learning records repository.
func NewLearningRecordsRepository(db *pgxpool.Pool) *LearningRecordsRepository {
	return &LearningRecordsRepository{db: db}
}

// Create inserts a new learning record. The vector id always starts empty.
func (r *LearningRecordsRepository) Create(
	ctx context.Context, req *models.CreateLearningRecordRequest,
) (*models.LearningRecord, error) {
	query := `
		INSERT INTO learning_records (
			conversation_id, user_message, bot_response, intent, category,
			origin_id, context, response_time_ms, was_helpful
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + learningRecordColumns

	record, err := scanLearningRecord(conn(ctx, r.db).QueryRow(ctx, query,
		req.ConversationID, req.UserMessage, req.BotResponse, req.Intent, req.Category,
		req.OriginID, jsonArg(req.Context), req.ResponseTimeMs, req.WasHelpful,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create learning record: %w", err)
	}

	return record, nil
}

// GetByID retrieves a single learning record by ID.
func (r *LearningRecordsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	query := `SELECT ` + learningRecordColumns + ` FROM learning_records WHERE id = $1`

	record, err := scanLearningRecord(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("learning record", "learning record not found")
		}

		return nil, fmt.Errorf("failed to get learning record: %w", err)
	}

	return record, nil
}

// LockForReference confirms the record exists and holds a key-share lock on it until the
// surrounding transaction ends, so a concurrent delete cannot orphan a row that references it.
// Outside a transaction the lock is released immediately.
func (r *LearningRecordsRepository) LockForReference(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID

	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT id FROM learning_records WHERE id = $1 FOR KEY SHARE`, id,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return huberrors.NewNotFoundError("learning record", "learning record not found")
		}

		return fmt.Errorf("failed to lock learning record: %w", err)
	}

	return nil
}

// buildLearningFilterConditions builds the WHERE clause and arguments for list and count queries.
func buildLearningFilterConditions(filters *models.ListLearningRecordsFilters) (whereClause string, args []any) {
	var conditions []string

	argCount := 1

	if filters.WasHelpful != nil {
		conditions = append(conditions, fmt.Sprintf("was_helpful = $%d", argCount))
		args = append(args, *filters.WasHelpful)
		argCount++
	}

	if filters.Intent != nil {
		conditions = append(conditions, fmt.Sprintf("intent = $%d", argCount))
		args = append(args, *filters.Intent)
		argCount++
	}

	if filters.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argCount))
		args = append(args, *filters.Category)
		argCount++
	}

	if filters.ConversationID != nil {
		conditions = append(conditions, fmt.Sprintf("conversation_id = $%d", argCount))
		args = append(args, *filters.ConversationID)
	}

	if filters.HasVector != nil {
		if *filters.HasVector {
			conditions = append(conditions, "vector_id IS NOT NULL")
		} else {
			conditions = append(conditions, "vector_id IS NULL")
		}
	}

	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List retrieves learning records with optional filters, newest first.
func (r *LearningRecordsRepository) List(
	ctx context.Context, filters *models.ListLearningRecordsFilters,
) ([]models.LearningRecord, error) {
	query := `SELECT ` + learningRecordColumns + ` FROM learning_records`

	whereClause, args := buildLearningFilterConditions(filters)
	query += whereClause
	argCount := len(args) + 1

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)

		args = append(args, filters.Limit)
		argCount++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)

		args = append(args, filters.Offset)
	}

	return r.queryLearningRecords(ctx, query, args...)
}

// Count returns the total count of learning records matching the filters.
func (r *LearningRecordsRepository) Count(ctx context.Context, filters *models.ListLearningRecordsFilters) (int64, error) {
	whereClause, args := buildLearningFilterConditions(filters)

	var count int64

	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM learning_records`+whereClause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count learning records: %w", err)
	}

	return count, nil
}

// Recent returns the most recently created learning records.
func (r *LearningRecordsRepository) Recent(ctx context.Context, limit int) ([]models.LearningRecord, error) {
	query := `SELECT ` + learningRecordColumns + ` FROM learning_records ORDER BY created_at DESC, id DESC LIMIT $1`

	return r.queryLearningRecords(ctx, query, limit)
}

func (r *LearningRecordsRepository) queryLearningRecords(
	ctx context.Context, query string, args ...any,
) ([]models.LearningRecord, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list learning records: %w", err)
	}
	defer rows.Close()

	records := []models.LearningRecord{}

	for rows.Next() {
		record, err := scanLearningRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learning record: %w", err)
		}

		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning records: %w", err)
	}

	return records, nil
}

// SetVectorID links a learning record to its vector index entry.
func (r *LearningRecordsRepository) SetVectorID(ctx context.Context, id uuid.UUID, vectorID string) error {
	result, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE learning_records SET vector_id = $1, updated_at = $2 WHERE id = $3`,
		vectorID, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set learning record vector id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("learning record", "learning record not found")
	}

	return nil
}

// UpdateHelpfulness sets the helpful flag and, when score is non-nil, the helpful score.
// Returns the updated record so callers get its vector id without a second read.
func (r *LearningRecordsRepository) UpdateHelpfulness(
	ctx context.Context, id uuid.UUID, helpful bool, score *float64,
) (*models.LearningRecord, error) {
	query := `
		UPDATE learning_records
		SET was_helpful = $1, helpful_score = COALESCE($2, helpful_score), updated_at = $3
		WHERE id = $4
		RETURNING ` + learningRecordColumns

	record, err := scanLearningRecord(conn(ctx, r.db).QueryRow(ctx, query, helpful, score, time.Now(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("learning record", "learning record not found")
		}

		return nil, fmt.Errorf("failed to update learning record helpfulness: %w", err)
	}

	return record, nil
}

// Delete removes a learning record and returns it so the caller can drop its vector entry.
// Feedback rows keep existing with learning_id set to NULL.
func (r *LearningRecordsRepository) Delete(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	query := `DELETE FROM learning_records WHERE id = $1 RETURNING ` + learningRecordColumns

	record, err := scanLearningRecord(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("learning record", "learning record not found")
		}

		return nil, fmt.Errorf("failed to delete learning record: %w", err)
	}

	return record, nil
}

// ListIDsMissingVector returns IDs of learning records that have not been indexed yet, oldest first.
func (r *LearningRecordsRepository) ListIDsMissingVector(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT id FROM learning_records WHERE vector_id IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list learning records missing a vector: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan learning record id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning record ids: %w", err)
	}

	return ids, nil
}

// CountHelpfulness splits all learning records by their helpful flag in one pass.
func (r *LearningRecordsRepository) CountHelpfulness(ctx context.Context) (*models.HelpfulnessCounts, error) {
	var counts models.HelpfulnessCounts

	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE was_helpful IS TRUE),
			COUNT(*) FILTER (WHERE was_helpful IS FALSE),
			COUNT(*) FILTER (WHERE was_helpful IS NULL)
		FROM learning_records`,
	).Scan(&counts.Total, &counts.Helpful, &counts.NotHelpful, &counts.Pending)
	if err != nil {
		return nil, fmt.Errorf("failed to count learning records by helpfulness: %w", err)
	}

	return &counts, nil
}

// learningGroupColumns whitelists the columns CountBy may group on.
var learningGroupColumns = map[string]struct{}{
	"category": {},
	"intent":   {},
}

// CountBy returns record counts grouped by category or intent, largest first. NULL labels are skipped.
func (r *LearningRecordsRepository) CountBy(ctx context.Context, column string) ([]models.LabelCount, error) {
	if _, ok := learningGroupColumns[column]; !ok {
		return nil, fmt.Errorf("count learning records: unsupported group column %q", column)
	}

	rows, err := conn(ctx, r.db).Query(ctx, fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) FROM learning_records
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY COUNT(*) DESC, %[1]s`, column))
	if err != nil {
		return nil, fmt.Errorf("failed to count learning records by %s: %w", column, err)
	}

	return collectLabelCounts(rows)
}

func collectLabelCounts(rows pgx.Rows) ([]models.LabelCount, error) {
	defer rows.Close()

	counts := []models.LabelCount{}

	for rows.Next() {
		var c models.LabelCount
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}

		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating label counts: %w", err)
	}

	return counts, nil
}
