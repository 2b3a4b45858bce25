// Package service holds the learning pipeline: ingestion, feedback processing, retrieval and daily stats.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/models"
	"github.com/chatpanel/learning-hub/internal/observability"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// LearningRecordsRepository defines the learning record data access used by ingestion.
type LearningRecordsRepository interface {
	Create(ctx context.Context, req *models.CreateLearningRecordRequest) (*models.LearningRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error)
	List(ctx context.Context, filters *models.ListLearningRecordsFilters) ([]models.LearningRecord, error)
	Count(ctx context.Context, filters *models.ListLearningRecordsFilters) (int64, error)
	SetVectorID(ctx context.Context, id uuid.UUID, vectorID string) error
	Delete(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error)
}

// Transactor runs fn atomically. Repository calls made with the context passed to fn
// share one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// noTx runs fn directly, for stores without transactions.
type noTx struct{}

func (noTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func txOrDirect(tx Transactor) Transactor {
	if tx == nil {
		return noTx{}
	}

	return tx
}

// StatsBumper increments daily stats buckets.
type StatsBumper interface {
	Bump(ctx context.Context, day time.Time, delta models.StatsDelta) error
}

// LearningRecordsService ingests exchanges and manages learning records.
type LearningRecordsService struct {
	repo    LearningRecordsRepository
	tx      Transactor
	index   vectorindex.Gateway
	stats   StatsBumper
	metrics observability.LearningMetrics
	now     func() time.Time
	logger  *slog.Logger
}

// LearningRecordsServiceParams configures LearningRecordsService. Metrics may be nil.
// Tx should be set whenever Repo and Stats share a database.
type LearningRecordsServiceParams struct {
	Repo    LearningRecordsRepository
	Tx      Transactor
	Index   vectorindex.Gateway
	Stats   StatsBumper
	Metrics observability.LearningMetrics
	Now     func() time.Time
	Logger  *slog.Logger
}

// NewLearningRecordsService creates a LearningRecordsService. A nil Index disables indexing.
func NewLearningRecordsService(p LearningRecordsServiceParams) *LearningRecordsService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}

	index := p.Index
	if index == nil {
		index = vectorindex.Disabled{}
	}

	return &LearningRecordsService{
		repo:    p.Repo,
		tx:      txOrDirect(p.Tx),
		index:   index,
		stats:   p.Stats,
		metrics: p.Metrics,
		now:     now,
		logger:  logger,
	}
}

// Ingest persists an exchange and counts it in today's stats in one transaction, then indexes it
// best-effort. The returned record carries a vector id only when both the index write and the
// back-link succeeded.
func (s *LearningRecordsService) Ingest(
	ctx context.Context, req *models.CreateLearningRecordRequest,
) (*models.LearningRecord, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return nil, huberrors.NewValidationError("user_message", "user_message is required")
	}

	if strings.TrimSpace(req.BotResponse) == "" {
		return nil, huberrors.NewValidationError("bot_response", "bot_response is required")
	}

	var record *models.LearningRecord

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error

		record, err = s.repo.Create(ctx, req)
		if err != nil {
			return huberrors.NewStorageError("create learning record", err)
		}

		if err := s.stats.Bump(ctx, s.now(), models.StatsDelta{TotalLearnings: 1}); err != nil {
			return storageError("bump daily stats", err)
		}

		return nil
	})
	if err != nil {
		return nil, storageError("ingest learning record", err)
	}

	s.indexRecord(ctx, record)

	if s.metrics != nil {
		s.metrics.RecordIngested(ctx, record.VectorID != nil)
	}

	return record, nil
}

// indexRecord stores record in the vector index and links the returned id. Failures are logged only.
func (s *LearningRecordsService) indexRecord(ctx context.Context, record *models.LearningRecord) {
	ctx = observability.WithLearningID(ctx, record.ID)

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "vector index store panicked", "panic", r)
		}
	}()

	vectorID, err := s.index.Store(ctx, vectorindex.StoreRequest{
		LearningID:  record.ID,
		UserMessage: record.UserMessage,
		BotResponse: record.BotResponse,
		WasHelpful:  record.WasHelpful,
		Intent:      record.Intent,
		Category:    record.Category,
		OriginID:    record.OriginID,
	})
	if err != nil {
		logIndexFailure(ctx, s.logger, "vector index store failed", err)

		return
	}

	if err := s.repo.SetVectorID(ctx, record.ID, vectorID); err != nil {
		s.logger.WarnContext(ctx, "link vector id failed", "vector_id", vectorID, "error", err)

		return
	}

	record.VectorID = &vectorID
}

// GetLearningRecord retrieves a single learning record by ID.
func (s *LearningRecordsService) GetLearningRecord(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get learning record", err)
	}

	return record, nil
}

// ListLearningRecords retrieves learning records, newest first, with optional filters.
func (s *LearningRecordsService) ListLearningRecords(
	ctx context.Context, filters *models.ListLearningRecordsFilters,
) (*models.ListLearningRecordsResponse, error) {
	filters.Limit = clampLimit(filters.Limit)

	records, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, storageError("list learning records", err)
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, storageError("count learning records", err)
	}

	return &models.ListLearningRecordsResponse{
		Data:    records,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
		HasMore: int64(filters.Offset+len(records)) < total,
	}, nil
}

// DeleteLearningRecord removes a learning record and, best-effort, its vector index entry.
func (s *LearningRecordsService) DeleteLearningRecord(ctx context.Context, id uuid.UUID) error {
	record, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storageError("delete learning record", err)
	}

	if record.VectorID == nil {
		return nil
	}

	if err := s.index.Delete(ctx, *record.VectorID); err != nil {
		logIndexFailure(ctx, s.logger, "vector index delete failed", err,
			"learning_id", record.ID, "vector_id", *record.VectorID)
	}

	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}

	return min(limit, maxListLimit)
}

// storageError passes typed errors through and wraps everything else as a StorageError.
func storageError(op string, err error) error {
	if errors.Is(err, huberrors.ErrNotFound) || errors.Is(err, huberrors.ErrValidation) ||
		errors.Is(err, huberrors.ErrStorage) {
		return err
	}

	return huberrors.NewStorageError(op, err)
}

// logIndexFailure logs a degraded vector index call. A disabled index is expected and logs at debug.
func logIndexFailure(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if errors.Is(err, vectorindex.ErrDisabled) {
		level = slog.LevelDebug
	}

	logger.Log(ctx, level, msg, append(attrs, "error", err)...)
}
