package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"knowledge-assistant/internal/models"
	"knowledge-assistant/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

type fakeIndex struct {
	hits       []models.SearchHit
	err        error
	calls      int
	lastTenant uuid.UUID
}

func (f *fakeIndex) Search(_ context.Context, tenantID uuid.UUID, _ []float32, _ int, _ float64) ([]models.SearchHit, error) {
	f.calls++
	f.lastTenant = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeAudit struct {
	rows []*models.AIRequest
	err  error
}

func (f *fakeAudit) Create(_ context.Context, req *models.AIRequest) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, req)
	return nil
}

type countingEmbedder struct {
	inner Embedder
	calls int
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.inner.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.inner.EmbedMany(ctx, texts)
}

func (e *countingEmbedder) Dimension() int { return e.inner.Dimension() }
func (e *countingEmbedder) Model() string  { return e.inner.Model() }

type fakeGenerator struct {
	result      *GenerationResult
	err         error
	calls       int
	lastContext []models.SearchHit
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func (f *fakeGenerator) Generate(_ context.Context, _ string, contextChunks []models.SearchHit) (*GenerationResult, error) {
	f.calls++
	f.lastContext = contextChunks
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type queryFixture struct {
	service   *QueryService
	index     *fakeIndex
	audit     *fakeAudit
	embedder  *countingEmbedder
	generator *fakeGenerator
	cache     *CacheService
}

func newQueryFixture(cfg *config.RAGConfig) *queryFixture {
	if cfg == nil {
		cfg = &config.RAGConfig{
			TopK:                5,
			SimilarityThreshold: 0.3,
			MaxChunkTokens:      500,
			MaxContextTokens:    2500,
		}
	}

	index := &fakeIndex{}
	audit := &fakeAudit{}
	embedder := &countingEmbedder{inner: NewStubEmbedder(384)}
	generator := &fakeGenerator{}
	cache := NewCacheService(NewMemoryKV(), time.Minute, zap.NewNop())

	return &queryFixture{
		service:   NewQueryService(index, audit, cache, embedder, generator, cfg, zap.NewNop()),
		index:     index,
		audit:     audit,
		embedder:  embedder,
		generator: generator,
		cache:     cache,
	}
}

func sampleHits() []models.SearchHit {
	return []models.SearchHit{
		{ChunkID: uuid.New(), DocumentID: uuid.New(), DocumentTitle: "Leave Policy", Content: "Employees accrue 25 days of paid annual leave per calendar year.", Similarity: 0.92},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), DocumentTitle: "Leave Policy", Content: "Unused days carry over up to a maximum of 5 days.", Similarity: 0.85},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), DocumentTitle: "Remote Work Policy", Content: "Employees may work remotely up to three days per week.", Similarity: 0.41},
	}
}

func completedResult() *GenerationResult {
	return &GenerationResult{
		Answer:           "You accrue 25 days of paid annual leave per year.",
		Confidence:       "high",
		SourcesUsed:      []string{"Leave Policy"},
		PromptTokens:     120,
		CompletionTokens: 40,
		TotalTokens:      160,
		Model:            "fake-model",
	}
}

func TestAskRejectsInvalidQuestion(t *testing.T) {
	f := newQueryFixture(nil)
	ctx := context.Background()

	_, err := f.service.Ask(ctx, uuid.New(), "hi")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.service.Ask(ctx, uuid.New(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Malformed questions never reach the audit log.
	assert.Empty(t, f.audit.rows)
	assert.Zero(t, f.embedder.calls)
}

func TestAskRefusesWithoutGeneration(t *testing.T) {
	f := newQueryFixture(nil)
	tenantID := uuid.New()

	req, err := f.service.Ask(context.Background(), tenantID, "what is the meaning of life?")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusRefused, req.Status)
	require.NotNil(t, req.RefusedReason)
	assert.Equal(t, "no relevant context found", *req.RefusedReason)
	assert.Nil(t, req.Answer)
	assert.Empty(t, req.Sources)

	// The generator must never run for an ungrounded question.
	assert.Zero(t, f.generator.calls)
	require.Len(t, f.audit.rows, 1)
	assert.Equal(t, models.RequestStatusRefused, f.audit.rows[0].Status)
}

func TestAskCompletedFlow(t *testing.T) {
	f := newQueryFixture(nil)
	f.index.hits = sampleHits()
	f.generator.result = completedResult()
	tenantID := uuid.New()

	req, err := f.service.Ask(context.Background(), tenantID, "How many leave days do I get?")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusCompleted, req.Status)
	require.NotNil(t, req.Answer)
	assert.Equal(t, "You accrue 25 days of paid annual leave per year.", *req.Answer)
	require.NotNil(t, req.Confidence)
	assert.Equal(t, "high", *req.Confidence)
	assert.Equal(t, 120, req.PromptTokens)
	assert.Equal(t, 40, req.CompletionTokens)
	assert.Equal(t, req.PromptTokens+req.CompletionTokens, req.TotalTokens)
	assert.Equal(t, "fake-model", req.ModelUsed)
	assert.False(t, req.Cached)

	// Only chunks from the claimed document are cited.
	require.Len(t, req.Sources, 2)
	for _, src := range req.Sources {
		assert.Equal(t, "Leave Policy", src.DocumentTitle)
		assert.NotEmpty(t, src.Excerpt)
		assert.Positive(t, src.RelevanceScore)
	}

	require.Len(t, f.audit.rows, 1)
	assert.Same(t, req, f.audit.rows[0])
}

func TestAskEmptyClaimFallsBackToRetrieved(t *testing.T) {
	f := newQueryFixture(nil)
	f.index.hits = sampleHits()
	result := completedResult()
	result.SourcesUsed = nil
	f.generator.result = result

	req, err := f.service.Ask(context.Background(), uuid.New(), "How many leave days do I get?")
	require.NoError(t, err)

	assert.Len(t, req.Sources, 3)
}

func TestAskCacheHitSkipsPipeline(t *testing.T) {
	f := newQueryFixture(nil)
	f.index.hits = sampleHits()
	f.generator.result = completedResult()
	tenantID := uuid.New()
	ctx := context.Background()

	first, err := f.service.Ask(ctx, tenantID, "How many leave days do I get?")
	require.NoError(t, err)

	// Same question, different casing and spacing.
	second, err := f.service.Ask(ctx, tenantID, "  how many LEAVE days do i get? ")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.False(t, first.Cached)
	assert.Equal(t, *first.Answer, *second.Answer)
	assert.Equal(t, first.Sources, second.Sources)
	assert.Equal(t, first.ModelUsed, second.ModelUsed)

	// Nothing past the cache runs on a hit.
	assert.Equal(t, 1, f.embedder.calls)
	assert.Equal(t, 1, f.index.calls)
	assert.Equal(t, 1, f.generator.calls)

	// A cache hit still gets its own audit row.
	assert.Len(t, f.audit.rows, 2)
	assert.NotEqual(t, f.audit.rows[0].ID, f.audit.rows[1].ID)
}

func TestAskRefusalIsCached(t *testing.T) {
	f := newQueryFixture(nil)
	tenantID := uuid.New()
	ctx := context.Background()

	_, err := f.service.Ask(ctx, tenantID, "completely off-topic question")
	require.NoError(t, err)

	second, err := f.service.Ask(ctx, tenantID, "completely off-topic question")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, models.RequestStatusRefused, second.Status)
	assert.Equal(t, 1, f.index.calls)
	assert.Zero(t, f.generator.calls)
}

func TestAskEmbedderFailure(t *testing.T) {
	f := newQueryFixture(nil)
	f.embedder.err = errors.New("connection refused")
	tenantID := uuid.New()

	req, err := f.service.Ask(context.Background(), tenantID, "How many leave days do I get?")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusError, req.Status)
	require.NotNil(t, req.RefusedReason)
	assert.Equal(t, "the answering service is temporarily unavailable", *req.RefusedReason)
	assert.Nil(t, req.Answer)
	require.Len(t, f.audit.rows, 1)

	// Error outcomes are never cached: once the provider recovers the
	// pipeline runs again.
	f.embedder.err = nil
	f.index.hits = sampleHits()
	f.generator.result = completedResult()

	retry, err := f.service.Ask(context.Background(), tenantID, "How many leave days do I get?")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, retry.Status)
	assert.False(t, retry.Cached)
}

func TestAskSearchFailure(t *testing.T) {
	f := newQueryFixture(nil)
	f.index.err = errors.New("index offline")

	req, err := f.service.Ask(context.Background(), uuid.New(), "How many leave days do I get?")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusError, req.Status)
	assert.Zero(t, f.generator.calls)
	require.Len(t, f.audit.rows, 1)
}

func TestAskGenerationFailure(t *testing.T) {
	f := newQueryFixture(nil)
	f.index.hits = sampleHits()
	f.generator.err = ErrGenerationUnavailable

	req, err := f.service.Ask(context.Background(), uuid.New(), "How many leave days do I get?")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusError, req.Status)
	require.Len(t, f.audit.rows, 1)
}

func TestAskSearchesWithCallerTenant(t *testing.T) {
	f := newQueryFixture(nil)
	tenantID := uuid.New()

	_, err := f.service.Ask(context.Background(), tenantID, "what is the travel policy?")
	require.NoError(t, err)

	assert.Equal(t, tenantID, f.index.lastTenant)
}

func TestAskCapsPromptContext(t *testing.T) {
	f := newQueryFixture(&config.RAGConfig{
		TopK:                5,
		SimilarityThreshold: 0.3,
		MaxChunkTokens:      500,
		// Small enough that only the best hit fits.
		MaxContextTokens: 12,
	})
	f.index.hits = sampleHits()
	f.generator.result = completedResult()

	_, err := f.service.Ask(context.Background(), uuid.New(), "How many leave days do I get?")
	require.NoError(t, err)

	require.Len(t, f.generator.lastContext, 1)
	assert.Equal(t, "Leave Policy", f.generator.lastContext[0].DocumentTitle)
}

func TestAskLatencyIsRecorded(t *testing.T) {
	f := newQueryFixture(nil)
	f.index.hits = sampleHits()
	f.generator.result = completedResult()

	req, err := f.service.Ask(context.Background(), uuid.New(), "How many leave days do I get?")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, req.LatencyMs, 0)
	assert.False(t, req.CreatedAt.IsZero())
}
