package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"knowledge-assistant/internal/models"
	"knowledge-assistant/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minQuestionLength = 3
	maxQuestionLength = 2000

	refusedNoContext       = "no relevant context found"
	genericProviderFailure = "the answering service is temporarily unavailable"

	sourceExcerptLength = 300
)

// VectorSearcher is the tenant-scoped nearest-neighbor query the
// orchestrator needs from the index.
type VectorSearcher interface {
	Search(ctx context.Context, tenantID uuid.UUID, vector []float32, k int, minSimilarity float64) ([]models.SearchHit, error)
}

// AuditWriter records finalized requests; exactly one row per request.
type AuditWriter interface {
	Create(ctx context.Context, req *models.AIRequest) error
}

// QueryService runs the answering pipeline: cache check, question
// embedding, tenant-scoped retrieval, grounding decision, generation,
// cache write-through, and the audit record.
type QueryService struct {
	index     VectorSearcher
	audit     AuditWriter
	cache     *CacheService
	embedder  Embedder
	generator Generator
	config    *config.RAGConfig
	logger    *zap.Logger
}

func NewQueryService(
	index VectorSearcher,
	audit AuditWriter,
	cache *CacheService,
	embedder Embedder,
	generator Generator,
	cfg *config.RAGConfig,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		index:     index,
		audit:     audit,
		cache:     cache,
		embedder:  embedder,
		generator: generator,
		config:    cfg,
		logger:    logger,
	}
}

// Ask answers one question for one tenant and returns the finalized
// audit record. Every outcome except a validation failure produces
// exactly one audit row.
func (s *QueryService) Ask(ctx context.Context, tenantID uuid.UUID, question string) (*models.AIRequest, error) {
	trimmed := strings.TrimSpace(question)
	if len(trimmed) < minQuestionLength || len(trimmed) > maxQuestionLength {
		return nil, fmt.Errorf("%w: question must be between %d and %d characters",
			ErrInvalidInput, minQuestionLength, maxQuestionLength)
	}

	start := time.Now()
	tenant := tenantID.String()

	// 1. Cache check; a hit skips the entire pipeline.
	if cached := s.cache.Get(ctx, tenant, trimmed); cached != nil {
		req := s.newRequest(tenantID, trimmed, start)
		req.Answer = cached.Answer
		req.Sources = cached.Sources
		req.Status = cached.Status
		req.Confidence = cached.Confidence
		req.RefusedReason = cached.RefusedReason
		req.ModelUsed = cached.ModelUsed
		req.Cached = true
		return s.finalize(ctx, req)
	}

	// 2. Embed the question.
	vector, err := s.embedder.Embed(ctx, trimmed)
	if err != nil {
		s.logger.Error("Failed to embed question", zap.String("tenant_id", tenant), zap.Error(err))
		return s.finalizeError(ctx, tenantID, trimmed, start)
	}

	// 3. Tenant-scoped retrieval.
	hits, err := s.index.Search(ctx, tenantID, vector, s.config.TopK, s.config.SimilarityThreshold)
	if err != nil {
		s.logger.Error("Vector search failed", zap.String("tenant_id", tenant), zap.Error(err))
		return s.finalizeError(ctx, tenantID, trimmed, start)
	}

	// No grounding: refuse without ever invoking the generator.
	if len(hits) == 0 {
		req := s.newRequest(tenantID, trimmed, start)
		req.Status = models.RequestStatusRefused
		reason := refusedNoContext
		req.RefusedReason = &reason
		req.ModelUsed = s.generator.Model()
		s.writeCache(ctx, tenant, trimmed, req)
		return s.finalize(ctx, req)
	}

	// 4. Bound the prompt context and generate.
	contextChunks := s.capContext(hits)
	result, err := s.generator.Generate(ctx, trimmed, contextChunks)
	if err != nil {
		s.logger.Error("Generation failed", zap.String("tenant_id", tenant), zap.Error(err))
		return s.finalizeError(ctx, tenantID, trimmed, start)
	}

	// 5. Assemble the outcome; cited sources come only from the
	// chunks that were actually in the prompt.
	req := s.newRequest(tenantID, trimmed, start)
	req.ModelUsed = result.Model
	req.PromptTokens = result.PromptTokens
	req.CompletionTokens = result.CompletionTokens
	req.TotalTokens = result.TotalTokens
	if result.Confidence != "" {
		confidence := result.Confidence
		req.Confidence = &confidence
	}

	if result.Refused {
		req.Status = models.RequestStatusRefused
		reason := refusedNoContext
		if result.RefusedReason != nil && *result.RefusedReason != "" {
			reason = *result.RefusedReason
		}
		req.RefusedReason = &reason
	} else {
		answer := result.Answer
		req.Status = models.RequestStatusCompleted
		req.Answer = &answer
		req.Sources = intersectSources(contextChunks, result.SourcesUsed)
	}

	// 6. Write through the cache; error outcomes are never cached.
	s.writeCache(ctx, tenant, trimmed, req)

	// 7. Audit row, exactly once.
	return s.finalize(ctx, req)
}

func (s *QueryService) newRequest(tenantID uuid.UUID, question string, start time.Time) *models.AIRequest {
	return &models.AIRequest{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Question:  question,
		Status:    models.RequestStatusPending,
		CreatedAt: start,
	}
}

// finalize stamps latency and inserts the audit row. The write runs on
// a detached context so a client disconnect cannot lose the record
// mid-insert.
func (s *QueryService) finalize(ctx context.Context, req *models.AIRequest) (*models.AIRequest, error) {
	req.LatencyMs = int(time.Since(req.CreatedAt).Milliseconds())
	if err := s.audit.Create(context.WithoutCancel(ctx), req); err != nil {
		return nil, fmt.Errorf("failed to record request: %w", err)
	}

	s.logger.Info("Request finalized",
		zap.String("request_id", req.ID.String()),
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("status", string(req.Status)),
		zap.Bool("cached", req.Cached),
		zap.Int("total_tokens", req.TotalTokens),
		zap.Int("latency_ms", req.LatencyMs),
	)

	return req, nil
}

// finalizeError records a provider or index failure without exposing
// its internals.
func (s *QueryService) finalizeError(ctx context.Context, tenantID uuid.UUID, question string, start time.Time) (*models.AIRequest, error) {
	req := s.newRequest(tenantID, question, start)
	req.Status = models.RequestStatusError
	reason := genericProviderFailure
	req.RefusedReason = &reason
	return s.finalize(ctx, req)
}

// writeCache stores completed and refused outcomes. Best-effort and
// idempotent; last writer wins.
func (s *QueryService) writeCache(ctx context.Context, tenant, question string, req *models.AIRequest) {
	if req.Status != models.RequestStatusCompleted && req.Status != models.RequestStatusRefused {
		return
	}
	s.cache.Put(context.WithoutCancel(ctx), tenant, question, &CachedAnswer{
		Answer:        req.Answer,
		Sources:       req.Sources,
		Status:        req.Status,
		Confidence:    req.Confidence,
		RefusedReason: req.RefusedReason,
		ModelUsed:     req.ModelUsed,
	})
}

// capContext keeps retrieved chunks, best first, until the estimated
// token budget for prompt context is spent.
func (s *QueryService) capContext(hits []models.SearchHit) []models.SearchHit {
	budget := s.config.MaxContextTokens
	if budget <= 0 {
		return hits
	}

	var (
		kept  []models.SearchHit
		total int
	)
	for _, hit := range hits {
		tokens := estimateTokens(hit.Content)
		if len(kept) > 0 && total+tokens > budget {
			break
		}
		kept = append(kept, hit)
		total += tokens
	}
	return kept
}

// intersectSources cites only retrieved chunks, filtered to the
// documents the model claims it used. Model-claimed titles that were
// never retrieved are ignored; an empty claim falls back to citing the
// full retrieved context.
func intersectSources(contextChunks []models.SearchHit, claimed []string) []models.Source {
	claimedSet := make(map[string]bool, len(claimed))
	for _, title := range claimed {
		claimedSet[title] = true
	}

	var sources []models.Source
	for _, hit := range contextChunks {
		if len(claimed) > 0 && !claimedSet[hit.DocumentTitle] {
			continue
		}
		excerpt := hit.Content
		if len(excerpt) > sourceExcerptLength {
			excerpt = excerpt[:sourceExcerptLength]
		}
		sources = append(sources, models.Source{
			ChunkID:        hit.ChunkID,
			DocumentTitle:  hit.DocumentTitle,
			RelevanceScore: roundScore(hit.Similarity),
			Excerpt:        excerpt,
		})
	}

	if len(sources) == 0 {
		for _, hit := range contextChunks {
			excerpt := hit.Content
			if len(excerpt) > sourceExcerptLength {
				excerpt = excerpt[:sourceExcerptLength]
			}
			sources = append(sources, models.Source{
				ChunkID:        hit.ChunkID,
				DocumentTitle:  hit.DocumentTitle,
				RelevanceScore: roundScore(hit.Similarity),
				Excerpt:        excerpt,
			})
		}
	}

	return sources
}

func roundScore(score float64) float64 {
	return float64(int(score*10000+0.5)) / 10000
}
