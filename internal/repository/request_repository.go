package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"knowledge-assistant/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RequestRepository writes the append-only audit trail. Rows are
// inserted fully finalized and never updated.
type RequestRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRequestRepository(db *pgxpool.Pool, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

func (r *RequestRepository) Create(ctx context.Context, req *models.AIRequest) error {
	sources, err := json.Marshal(req.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := squirrel.Insert("ai_requests").
		Columns("id", "tenant_id", "question", "answer", "sources", "status",
			"confidence", "refused_reason", "prompt_tokens", "completion_tokens",
			"total_tokens", "model_used", "latency_ms", "cached", "created_at").
		Values(req.ID, req.TenantID, req.Question, req.Answer, sources, req.Status,
			req.Confidence, req.RefusedReason, req.PromptTokens, req.CompletionTokens,
			req.TotalTokens, req.ModelUsed, req.LatencyMs, req.Cached, req.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// GetByID is tenant-scoped: a request owned by a different tenant is a
// not-found, not a leak.
func (r *RequestRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.AIRequest, error) {
	query := squirrel.Select("id", "tenant_id", "question", "answer", "sources", "status",
		"confidence", "refused_reason", "prompt_tokens", "completion_tokens",
		"total_tokens", "model_used", "latency_ms", "cached", "created_at").
		From("ai_requests").
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	req, err := scanRequest(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

func (r *RequestRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.AIRequest, error) {
	query := squirrel.Select("id", "tenant_id", "question", "answer", "sources", "status",
		"confidence", "refused_reason", "prompt_tokens", "completion_tokens",
		"total_tokens", "model_used", "latency_ms", "cached", "created_at").
		From("ai_requests").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
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

	var requests []*models.AIRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func scanRequest(row pgx.Row) (*models.AIRequest, error) {
	var req models.AIRequest
	var sources []byte
	err := row.Scan(
		&req.ID, &req.TenantID, &req.Question, &req.Answer, &sources, &req.Status,
		&req.Confidence, &req.RefusedReason, &req.PromptTokens, &req.CompletionTokens,
		&req.TotalTokens, &req.ModelUsed, &req.LatencyMs, &req.Cached, &req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &req.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}

	return &req, nil
}
