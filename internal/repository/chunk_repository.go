package repository

import (
	"context"
	"strconv"
	"strings"

	"knowledge-assistant/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChunkRepository is the tenant-scoped vector index backed by pgvector.
// The tenant filter is part of the search query itself, so a search for
// one tenant can never rank another tenant's vectors.
type ChunkRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewChunkRepository(db *pgxpool.Pool, logger *zap.Logger) *ChunkRepository {
	return &ChunkRepository{
		db:     db,
		logger: logger,
	}
}

// vectorLiteral renders a float32 slice in pgvector's input format.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	query := squirrel.Insert("document_chunks").
		Columns("id", "document_id", "tenant_id", "chunk_index", "content",
			"token_count", "embedding", "embedding_model", "metadata", "created_at").
		PlaceholderFormat(squirrel.Dollar)

	for _, c := range chunks {
		query = query.Values(
			c.ID, c.DocumentID, c.TenantID, c.ChunkIndex, c.Content,
			c.TokenCount, squirrel.Expr("?::vector", vectorLiteral(c.Embedding)),
			c.EmbeddingModel, c.Metadata, c.CreatedAt,
		)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// Search runs a cosine nearest-neighbor query restricted to one tenant.
// Hits below minSimilarity are excluded inside the query; ties break by
// insertion order.
func (r *ChunkRepository) Search(ctx context.Context, tenantID uuid.UUID, vector []float32, k int, minSimilarity float64) ([]models.SearchHit, error) {
	vec := vectorLiteral(vector)

	query := squirrel.Select("dc.id", "dc.document_id", "dc.content", "d.title").
		Column(squirrel.Alias(squirrel.Expr("1 - (dc.embedding <=> ?::vector)", vec), "similarity")).
		From("document_chunks dc").
		Join("documents d ON d.id = dc.document_id").
		Where(squirrel.Eq{"dc.tenant_id": tenantID}).
		Where(squirrel.Expr("1 - (dc.embedding <=> ?::vector) > ?", vec, minSimilarity)).
		OrderBy("similarity DESC", "dc.created_at ASC", "dc.chunk_index ASC").
		Limit(uint64(k)).
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

	var hits []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Content, &h.DocumentTitle, &h.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, tenantID, documentID uuid.UUID) error {
	query := squirrel.Delete("document_chunks").
		Where(squirrel.Eq{"document_id": documentID, "tenant_id": tenantID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// ListStale returns a tenant's chunks embedded with a different model
// version than the one currently active, so they can be re-embedded.
func (r *ChunkRepository) ListStale(ctx context.Context, tenantID uuid.UUID, activeModel string) ([]*models.Chunk, error) {
	query := squirrel.Select("id", "document_id", "tenant_id", "chunk_index", "content",
		"token_count", "embedding_model", "metadata", "created_at").
		From("document_chunks").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where(squirrel.NotEq{"embedding_model": activeModel}).
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

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.TenantID, &c.ChunkIndex, &c.Content,
			&c.TokenCount, &c.EmbeddingModel, &c.Metadata, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}

	return chunks, rows.Err()
}

// UpdateEmbedding replaces a chunk's vector after re-embedding. The
// only permitted mutation of a chunk row.
func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, chunkID uuid.UUID, vector []float32, model string) error {
	query := squirrel.Update("document_chunks").
		Set("embedding", squirrel.Expr("?::vector", vectorLiteral(vector))).
		Set("embedding_model", model).
		Where(squirrel.Eq{"id": chunkID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}
