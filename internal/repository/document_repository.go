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

// DocumentWithStats is a document row joined with its chunk count.
type DocumentWithStats struct {
	Document   models.Document
	ChunkCount int
}

type DocumentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDocumentRepository(db *pgxpool.Pool, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := squirrel.Insert("documents").
		Columns("id", "tenant_id", "title", "content", "doc_type", "metadata", "created_at", "updated_at").
		Values(doc.ID, doc.TenantID, doc.Title, doc.Content, doc.Type, doc.Metadata, doc.CreatedAt, doc.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// GetByID is tenant-scoped: a document belonging to another tenant is
// indistinguishable from a missing one.
func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	query := squirrel.Select("id", "tenant_id", "title", "content", "doc_type", "metadata", "created_at", "updated_at").
		From("documents").
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&doc.ID, &doc.TenantID, &doc.Title, &doc.Content, &doc.Type, &doc.Metadata, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*DocumentWithStats, error) {
	query := squirrel.Select(
		"d.id", "d.tenant_id", "d.title", "d.doc_type", "d.metadata", "d.created_at", "d.updated_at",
		"COUNT(dc.id) AS chunk_count",
	).
		From("documents d").
		LeftJoin("document_chunks dc ON dc.document_id = d.id").
		Where(squirrel.Eq{"d.tenant_id": tenantID}).
		GroupBy("d.id").
		OrderBy("d.created_at DESC").
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

	var documents []*DocumentWithStats
	for rows.Next() {
		var d DocumentWithStats
		if err := rows.Scan(
			&d.Document.ID, &d.Document.TenantID, &d.Document.Title, &d.Document.Type,
			&d.Document.Metadata, &d.Document.CreatedAt, &d.Document.UpdatedAt, &d.ChunkCount,
		); err != nil {
			return nil, err
		}
		documents = append(documents, &d)
	}

	return documents, rows.Err()
}

// Update rewrites a document's content on re-ingestion.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := squirrel.Update("documents").
		Set("title", doc.Title).
		Set("content", doc.Content).
		Set("doc_type", doc.Type).
		Set("metadata", doc.Metadata).
		Set("updated_at", doc.UpdatedAt).
		Where(squirrel.Eq{"id": doc.ID, "tenant_id": doc.TenantID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a tenant's document; chunks cascade at the database
// level. Reports ErrNotFound when nothing was deleted.
func (r *DocumentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := squirrel.Delete("documents").
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
