package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatpanel/learning-hub/internal/models"
)

const feedbackRecordColumns = `id, learning_id, conversation_id, message_id,
	feedback_type, rating, comment, origin_id, source, created_at`

func scanFeedbackRecord(row rowScanner) (*models.FeedbackRecord, error) {
	var (
		record       models.FeedbackRecord
		feedbackType string
	)

	err := row.Scan(
		&record.ID, &record.LearningID, &record.ConversationID, &record.MessageID,
		&feedbackType, &record.Rating, &record.Comment, &record.OriginID, &record.Source, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.FeedbackType = models.FeedbackType(feedbackType)

	return &record, nil
}

// FeedbackRecordsRepository handles data access for feedback records. Rows are append-only.
type FeedbackRecordsRepository struct {
	db *pgxpool.Pool
}

// NewFeedbackRecordsRepository creates a new feedback records repository.
func NewFeedbackRecordsRepository(db *pgxpool.Pool) *FeedbackRecordsRepository {
	return &FeedbackRecordsRepository{db: db}
}

// Create inserts a feedback record. feedbackType must already be normalised.
func (r *FeedbackRecordsRepository) Create(
	ctx context.Context, req *models.CreateFeedbackRequest, feedbackType models.FeedbackType,
) (*models.FeedbackRecord, error) {
	source := req.Source
	if source == "" {
		source = "api"
	}

	query := `
		INSERT INTO feedback_records (
			learning_id, conversation_id, message_id, feedback_type,
			rating, comment, origin_id, source
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + feedbackRecordColumns

	record, err := scanFeedbackRecord(conn(ctx, r.db).QueryRow(ctx, query,
		req.LearningID, req.ConversationID, req.MessageID, string(feedbackType),
		req.Rating, req.Comment, req.OriginID, source,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback record: %w", err)
	}

	return record, nil
}

// buildFeedbackFilterConditions builds the WHERE clause and arguments for list and count queries.
func buildFeedbackFilterConditions(filters *models.ListFeedbackFilters) (whereClause string, args []any) {
	var conditions []string

	argCount := 1

	if filters.FeedbackType != nil {
		conditions = append(conditions, fmt.Sprintf("feedback_type = $%d", argCount))
		args = append(args, string(*filters.FeedbackType))
		argCount++
	}

	if filters.ConversationID != nil {
		conditions = append(conditions, fmt.Sprintf("conversation_id = $%d", argCount))
		args = append(args, *filters.ConversationID)
		argCount++
	}

	if filters.LearningID != nil {
		conditions = append(conditions, fmt.Sprintf("learning_id = $%d", argCount))
		args = append(args, *filters.LearningID)
	}

	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return whereClause, args
}

// List retrieves feedback records with optional filters, newest first.
func (r *FeedbackRecordsRepository) List(
	ctx context.Context, filters *models.ListFeedbackFilters,
) ([]models.FeedbackRecord, error) {
	query := `SELECT ` + feedbackRecordColumns + ` FROM feedback_records`

	whereClause, args := buildFeedbackFilterConditions(filters)
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

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback records: %w", err)
	}
	defer rows.Close()

	records := []models.FeedbackRecord{}

	for rows.Next() {
		record, err := scanFeedbackRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback record: %w", err)
		}

		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback records: %w", err)
	}

	return records, nil
}

// Count returns the total count of feedback records matching the filters.
func (r *FeedbackRecordsRepository) Count(ctx context.Context, filters *models.ListFeedbackFilters) (int64, error) {
	whereClause, args := buildFeedbackFilterConditions(filters)

	var count int64

	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM feedback_records`+whereClause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback records: %w", err)
	}

	return count, nil
}

// CountByType returns feedback counts per kind under the same filters as List.
// Kinds with no rows are present with a zero count.
func (r *FeedbackRecordsRepository) CountByType(
	ctx context.Context, filters *models.ListFeedbackFilters,
) (map[string]int64, error) {
	whereClause, args := buildFeedbackFilterConditions(filters)

	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT feedback_type, COUNT(*) FROM feedback_records`+whereClause+` GROUP BY feedback_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback records by type: %w", err)
	}

	counts, err := collectLabelCounts(rows)
	if err != nil {
		return nil, err
	}

	summary := make(map[string]int64, len(models.AllFeedbackTypes()))
	for _, ft := range models.AllFeedbackTypes() {
		summary[ft.String()] = 0
	}

	for _, c := range counts {
		summary[c.Label] = c.Count
	}

	return summary, nil
}
