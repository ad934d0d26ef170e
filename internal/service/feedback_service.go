package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestReader looks up audit rows tenant-scoped.
type RequestReader interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.AIRequest, error)
}

// FeedbackStore persists reviewer feedback.
type FeedbackStore interface {
	Create(ctx context.Context, fb *models.Feedback) error
}

// FeedbackService records human ratings on answered requests.
type FeedbackService struct {
	feedback FeedbackStore
	requests RequestReader
	logger   *zap.Logger
}

func NewFeedbackService(feedback FeedbackStore, requests RequestReader, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{
		feedback: feedback,
		requests: requests,
		logger:   logger,
	}
}

// Record stores a 1-5 rating for a request. The request must belong to
// the calling tenant; anything else is a not-found.
func (s *FeedbackService) Record(ctx context.Context, tenantID, requestID uuid.UUID, rating int, comment *string) (*models.Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	if _, err := s.requests.GetByID(ctx, tenantID, requestID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to load request: %w", err)
	}

	fb := &models.Feedback{
		ID:        uuid.New(),
		RequestID: requestID,
		TenantID:  tenantID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now(),
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	s.logger.Info("Feedback recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_id", requestID.String()),
		zap.Int("rating", rating),
	)

	return fb, nil
}
