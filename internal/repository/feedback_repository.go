package repository

import (
	"context"

	"knowledge-assistant/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type FeedbackRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewFeedbackRepository(db *pgxpool.Pool, logger *zap.Logger) *FeedbackRepository {
	return &FeedbackRepository{
		db:     db,
		logger: logger,
	}
}

func (r *FeedbackRepository) Create(ctx context.Context, fb *models.Feedback) error {
	query := squirrel.Insert("feedback").
		Columns("id", "request_id", "tenant_id", "rating", "comment", "created_at").
		Values(fb.ID, fb.RequestID, fb.TenantID, fb.Rating, fb.Comment, fb.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *FeedbackRepository) ListByRequest(ctx context.Context, tenantID, requestID uuid.UUID) ([]*models.Feedback, error) {
	query := squirrel.Select("id", "request_id", "tenant_id", "rating", "comment", "created_at").
		From("feedback").
		Where(squirrel.Eq{"request_id": requestID, "tenant_id": tenantID}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feedback []*models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.RequestID, &fb.TenantID, &fb.Rating, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, err
		}
		feedback = append(feedback, &fb)
	}

	return feedback, rows.Err()
}
