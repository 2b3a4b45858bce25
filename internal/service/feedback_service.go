package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/models"
	"github.com/chatpanel/learning-hub/internal/observability"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
)

// FeedbackRecordsRepository defines the feedback record data access.
type FeedbackRecordsRepository interface {
	Create(ctx context.Context, req *models.CreateFeedbackRequest, feedbackType models.FeedbackType) (*models.FeedbackRecord, error)
	List(ctx context.Context, filters *models.ListFeedbackFilters) ([]models.FeedbackRecord, error)
	Count(ctx context.Context, filters *models.ListFeedbackFilters) (int64, error)
	CountByType(ctx context.Context, filters *models.ListFeedbackFilters) (map[string]int64, error)
}

// LearningHelpfulnessStore locks learning records referenced by feedback and writes their helpfulness.
type LearningHelpfulnessStore interface {
	LockForReference(ctx context.Context, id uuid.UUID) error
	UpdateHelpfulness(ctx context.Context, id uuid.UUID, helpful bool, score *float64) (*models.LearningRecord, error)
}

// FeedbackService records feedback events and propagates their helpful signal.
type FeedbackService struct {
	repo      FeedbackRecordsRepository
	learnings LearningHelpfulnessStore
	tx        Transactor
	index     vectorindex.Gateway
	stats     StatsBumper
	metrics   observability.LearningMetrics
	now       func() time.Time
	logger    *slog.Logger
}

// FeedbackServiceParams configures FeedbackService. Metrics may be nil.
type FeedbackServiceParams struct {
	Repo      FeedbackRecordsRepository
	Learnings LearningHelpfulnessStore
	Tx        Transactor
	Index     vectorindex.Gateway
	Stats     StatsBumper
	Metrics   observability.LearningMetrics
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewFeedbackService creates a FeedbackService. A nil Index disables vector updates.
func NewFeedbackService(p FeedbackServiceParams) *FeedbackService {
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

	return &FeedbackService{
		repo:      p.Repo,
		learnings: p.Learnings,
		tx:        txOrDirect(p.Tx),
		index:     index,
		stats:     p.Stats,
		metrics:   p.Metrics,
		now:       now,
		logger:    logger,
	}
}

// validateFeedback normalises the kind and checks the rating. It runs before any read or write.
func validateFeedback(req *models.CreateFeedbackRequest) (models.FeedbackType, error) {
	ft, err := models.ParseFeedbackType(req.FeedbackType)
	if err != nil {
		return "", huberrors.NewValidationError("feedback_type",
			fmt.Sprintf("feedback_type must be one of thumbs_up, thumbs_down, star_rating, flag, comment; got %q",
				req.FeedbackType))
	}

	if ft == models.FeedbackTypeStarRating {
		if req.Rating == nil {
			return "", huberrors.NewValidationError("rating", "rating is required for star_rating feedback")
		}

		if *req.Rating < models.MinRating || *req.Rating > models.MaxRating {
			return "", huberrors.NewValidationError("rating",
				fmt.Sprintf("rating must be between %d and %d", models.MinRating, models.MaxRating))
		}
	} else if req.Rating != nil {
		return "", huberrors.NewValidationError("rating", "rating is only allowed for star_rating feedback")
	}

	return ft, nil
}

// RecordFeedback stores a feedback event, applies its helpful signal to the linked learning record
// and counts the signal in today's stats, all in one transaction. The vector index is updated
// best-effort after commit.
func (s *FeedbackService) RecordFeedback(
	ctx context.Context, req *models.CreateFeedbackRequest,
) (*models.FeedbackRecord, error) {
	ft, err := validateFeedback(req)
	if err != nil {
		return nil, err
	}

	helpful := models.HelpfulSignal(ft, req.Rating)

	var (
		record  *models.FeedbackRecord
		learned *models.LearningRecord
	)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if req.LearningID != nil {
			if err := s.learnings.LockForReference(ctx, *req.LearningID); err != nil {
				return storageError("get learning record", err)
			}
		}

		var err error

		record, err = s.repo.Create(ctx, req, ft)
		if err != nil {
			return huberrors.NewStorageError("create feedback record", err)
		}

		if helpful == nil {
			return nil
		}

		if req.LearningID != nil {
			learned, err = s.learnings.UpdateHelpfulness(ctx, *req.LearningID, *helpful, ratingScore(req.Rating))
			if err != nil {
				return storageError("update learning record helpfulness", err)
			}
		}

		delta := models.StatsDelta{NegativeFeedback: 1}
		if *helpful {
			delta = models.StatsDelta{PositiveFeedback: 1}
		}

		if err := s.stats.Bump(ctx, s.now(), delta); err != nil {
			return storageError("bump daily stats", err)
		}

		return nil
	})
	if err != nil {
		return nil, storageError("record feedback", err)
	}

	if s.metrics != nil {
		s.metrics.RecordFeedback(ctx, ft.String())
	}

	if learned != nil && learned.VectorID != nil {
		s.mirrorSignal(ctx, learned, *helpful)
	}

	return record, nil
}

// ratingScore is the helpful score a rating sets; nil leaves the stored score unchanged.
func ratingScore(rating *int) *float64 {
	if rating == nil {
		return nil
	}

	v := float64(*rating)

	return &v
}

// mirrorSignal pushes the helpful flag to the vector index. Failures are logged only.
func (s *FeedbackService) mirrorSignal(ctx context.Context, learning *models.LearningRecord, helpful bool) {
	if err := s.index.Update(ctx, *learning.VectorID, helpful); err != nil {
		logIndexFailure(observability.WithLearningID(ctx, learning.ID), s.logger, "vector index update failed", err,
			"vector_id", *learning.VectorID)
	}
}

// ListFeedback retrieves feedback records, newest first, with a count per kind under the same filters.
func (s *FeedbackService) ListFeedback(
	ctx context.Context, filters *models.ListFeedbackFilters,
) (*models.ListFeedbackResponse, error) {
	filters.Limit = clampLimit(filters.Limit)

	records, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, storageError("list feedback records", err)
	}

	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, storageError("count feedback records", err)
	}

	summary, err := s.repo.CountByType(ctx, filters)
	if err != nil {
		return nil, storageError("count feedback records by type", err)
	}

	return &models.ListFeedbackResponse{
		Data:    records,
		Summary: summary,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
		HasMore: int64(filters.Offset+len(records)) < total,
	}, nil
}
