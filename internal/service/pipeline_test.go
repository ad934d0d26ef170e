package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"knowledge-assistant/internal/models"
	"knowledge-assistant/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

// memoryIndex is a brute-force cosine index over the chunk store,
// serving both the ingestion write side and the query read side.
type memoryIndex struct {
	fakeChunkStore
}

func (m *memoryIndex) Search(_ context.Context, tenantID uuid.UUID, vector []float32, k int, minSimilarity float64) ([]models.SearchHit, error) {
	var hits []models.SearchHit
	for _, c := range m.chunks {
		if c.TenantID != tenantID {
			continue
		}
		sim := cosine(vector, c.Embedding)
		if sim <= minSimilarity {
			continue
		}
		hits = append(hits, models.SearchHit{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Content,
			Similarity: sim,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestPipelineIngestThenAsk(t *testing.T) {
	tenantID := uuid.New()
	ctx := context.Background()

	index := &memoryIndex{}
	docs := newFakeDocStore()
	tenants := &fakeTenantStore{active: map[uuid.UUID]bool{tenantID: true}}
	cache := NewCacheService(NewMemoryKV(), time.Minute, zap.NewNop())
	embedder := NewStubEmbedder(384)
	audit := &fakeAudit{}

	docService := NewDocumentService(docs, index, tenants, NewChunker(500), embedder, cache, zap.NewNop())

	// Stub vectors are random directions, so retrieval is exercised
	// with the floor disabled.
	cfg := &config.RAGConfig{TopK: 5, SimilarityThreshold: -1, MaxChunkTokens: 500, MaxContextTokens: 2500}
	queryService := NewQueryService(index, audit, cache, embedder, NewStubGenerator(), cfg, zap.NewNop())

	_, chunks, err := docService.Ingest(ctx, tenantID, "Leave Policy", policyText, models.DocumentTypeMarkdown, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	req, err := queryService.Ask(ctx, tenantID, "How many annual leave days do employees get?")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusCompleted, req.Status)
	require.NotNil(t, req.Answer)
	assert.NotEmpty(t, req.Sources)
	assert.Positive(t, req.TotalTokens)

	// Another tenant sees none of this content.
	otherTenant := uuid.New()
	tenants.active[otherTenant] = true

	other, err := queryService.Ask(ctx, otherTenant, "How many annual leave days do employees get?")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRefused, other.Status)
	assert.Empty(t, other.Sources)

	// Ingesting new content clears the first tenant's cached answers.
	first := cache.Get(ctx, tenantID.String(), "How many annual leave days do employees get?")
	require.NotNil(t, first)

	_, _, err = docService.Ingest(ctx, tenantID, "Remote Work Policy", "Employees may work remotely up to three days per week after probation.", models.DocumentTypeText, nil)
	require.NoError(t, err)

	assert.Nil(t, cache.Get(ctx, tenantID.String(), "How many annual leave days do employees get?"))
}
