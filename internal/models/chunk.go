package models

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a retrieval-sized slice of a document, embedded as a vector.
// TenantID is denormalized from the owning document so the vector search
// can filter by tenant without a join; the two must always agree.
type Chunk struct {
	ID             uuid.UUID `db:"id"`
	DocumentID     uuid.UUID `db:"document_id"`
	TenantID       uuid.UUID `db:"tenant_id"`
	ChunkIndex     int       `db:"chunk_index"`
	Content        string    `db:"content"`
	TokenCount     int       `db:"token_count"`
	Embedding      []float32 `db:"embedding"`
	EmbeddingModel string    `db:"embedding_model"`
	Metadata       string    `db:"metadata"` // JSON, carries document_title for citations
	CreatedAt      time.Time `db:"created_at"`
}

// SearchHit is a chunk returned by the vector index together with its
// cosine similarity to the query vector.
type SearchHit struct {
	ChunkID       uuid.UUID
	DocumentID    uuid.UUID
	DocumentTitle string
	Content       string
	Similarity    float64
}
