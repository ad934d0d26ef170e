package repository

import (
	"context"
	"errors"

	"knowledge-assistant/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a row does not exist for the requesting
// tenant. Cross-tenant lookups deliberately produce the same error.
var ErrNotFound = errors.New("not found")

type TenantRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTenantRepository(db *pgxpool.Pool, logger *zap.Logger) *TenantRepository {
	return &TenantRepository{
		db:     db,
		logger: logger,
	}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	query := squirrel.Insert("tenants").
		Columns("id", "name", "slug", "is_active", "created_at", "updated_at").
		Values(tenant.ID, tenant.Name, tenant.Slug, tenant.IsActive, tenant.CreatedAt, tenant.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// GetActive returns the tenant only if it exists and is active.
func (r *TenantRepository) GetActive(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := squirrel.Select("id", "name", "slug", "is_active", "created_at", "updated_at").
		From("tenants").
		Where(squirrel.Eq{"id": id, "is_active": true}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var t models.Tenant
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *TenantRepository) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	query := squirrel.Select("id", "name", "slug", "is_active", "created_at", "updated_at").
		From("tenants").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("name ASC").
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

	var tenants []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, &t)
	}

	return tenants, rows.Err()
}
