package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"knowledge-assistant/internal/models"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "ka:query:"

// KV is the minimal key-value contract the cache needs: atomic get,
// set-with-expiry, and bulk delete under a prefix. Backed by Redis in
// production and by MemoryKV otherwise.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// CachedAnswer is the terminal outcome stored per (tenant, question).
type CachedAnswer struct {
	Answer        *string              `json:"answer"`
	Sources       []models.Source      `json:"sources"`
	Status        models.RequestStatus `json:"status"`
	Confidence    *string              `json:"confidence,omitempty"`
	RefusedReason *string              `json:"refused_reason,omitempty"`
	ModelUsed     string               `json:"model_used"`
}

// CacheService maps a normalized (tenant, question) pair to a
// previously computed answer. KV failures degrade to cache misses and
// never fail the request.
type CacheService struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCacheService(kv KV, ttl time.Duration, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CacheService{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

// NormalizeQuestion lowercases, trims, and collapses internal
// whitespace so questions differing only in casing or spacing share a
// cache entry.
func NormalizeQuestion(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// cacheKey embeds the tenant identifier so no key collision can cross
// tenants.
func (s *CacheService) cacheKey(tenantID, question string) string {
	digest := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return cacheKeyPrefix + tenantID + ":" + hex.EncodeToString(digest[:])[:16]
}

// Get returns the cached answer or nil on miss.
func (s *CacheService) Get(ctx context.Context, tenantID, question string) *CachedAnswer {
	key := s.cacheKey(tenantID, question)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Cache read error, treating as miss", zap.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}

	var cached CachedAnswer
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		s.logger.Warn("Cache entry corrupt, treating as miss", zap.Error(err))
		return nil
	}

	s.logger.Debug("Cache hit", zap.String("key", key))
	return &cached
}

// Put stores the answer under the normalized key. Last writer wins;
// concurrent duplicate builds overwrite each other harmlessly.
func (s *CacheService) Put(ctx context.Context, tenantID, question string, answer *CachedAnswer) {
	data, err := json.Marshal(answer)
	if err != nil {
		s.logger.Warn("Failed to marshal cache entry", zap.Error(err))
		return
	}

	key := s.cacheKey(tenantID, question)
	if err := s.kv.SetEx(ctx, key, string(data), s.ttl); err != nil {
		s.logger.Warn("Cache write error", zap.Error(err))
	}
}

// InvalidateTenant drops every cached answer for one tenant. Called
// whenever the tenant's knowledge base changes.
func (s *CacheService) InvalidateTenant(ctx context.Context, tenantID string) {
	count, err := s.kv.DeleteByPrefix(ctx, cacheKeyPrefix+tenantID+":")
	if err != nil {
		s.logger.Warn("Cache invalidation error", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}
	s.logger.Info("Invalidated cached answers",
		zap.String("tenant_id", tenantID),
		zap.Int("entries", count),
	)
}

// ── In-process KV ───────────────────────────────────────────────────

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKV is a thread-safe TTL map used when no Redis is configured,
// and as the test double.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]memoryEntry)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", nil
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", nil
	}
	return entry.value, nil
}

func (m *MemoryKV) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryKV) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}
