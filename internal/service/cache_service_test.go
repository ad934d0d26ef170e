package service

import (
	"context"
	"testing"
	"time"

	"knowledge-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func testCache(ttl time.Duration) (*CacheService, *MemoryKV) {
	kv := NewMemoryKV()
	return NewCacheService(kv, ttl, zap.NewNop()), kv
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := testCache(time.Minute)
	ctx := context.Background()

	entry := &CachedAnswer{
		Answer:     strPtr("You accrue 25 days per year."),
		Status:     models.RequestStatusCompleted,
		Confidence: strPtr("high"),
		ModelUsed:  "stub-model-v1",
		Sources: []models.Source{
			{DocumentTitle: "Leave Policy", RelevanceScore: 0.91, Excerpt: "25 days"},
		},
	}
	cache.Put(ctx, "tenant-a", "How many leave days do I get?", entry)

	got := cache.Get(ctx, "tenant-a", "How many leave days do I get?")
	require.NotNil(t, got)
	assert.Equal(t, entry.Answer, got.Answer)
	assert.Equal(t, entry.Status, got.Status)
	assert.Equal(t, entry.Confidence, got.Confidence)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "Leave Policy", got.Sources[0].DocumentTitle)
}

func TestCacheNormalizesQuestions(t *testing.T) {
	cache, _ := testCache(time.Minute)
	ctx := context.Background()

	cache.Put(ctx, "tenant-a", "How many leave days do I get?", &CachedAnswer{
		Answer: strPtr("25"),
		Status: models.RequestStatusCompleted,
	})

	for _, variant := range []string{
		"how many leave days do i get?",
		"  How many   leave days do I get?  ",
		"HOW MANY LEAVE DAYS DO I GET?",
	} {
		assert.NotNil(t, cache.Get(ctx, "tenant-a", variant), "variant %q should hit", variant)
	}

	assert.Nil(t, cache.Get(ctx, "tenant-a", "how many sick days do i get?"))
}

func TestCacheIsTenantScoped(t *testing.T) {
	cache, _ := testCache(time.Minute)
	ctx := context.Background()

	cache.Put(ctx, "tenant-a", "what is the vpn policy?", &CachedAnswer{
		Answer: strPtr("Use the corporate VPN."),
		Status: models.RequestStatusCompleted,
	})

	assert.NotNil(t, cache.Get(ctx, "tenant-a", "what is the vpn policy?"))
	assert.Nil(t, cache.Get(ctx, "tenant-b", "what is the vpn policy?"))
}

func TestCacheInvalidateTenant(t *testing.T) {
	cache, _ := testCache(time.Minute)
	ctx := context.Background()

	cache.Put(ctx, "tenant-a", "question one", &CachedAnswer{Status: models.RequestStatusCompleted})
	cache.Put(ctx, "tenant-a", "question two", &CachedAnswer{Status: models.RequestStatusCompleted})
	cache.Put(ctx, "tenant-b", "question one", &CachedAnswer{Status: models.RequestStatusCompleted})

	cache.InvalidateTenant(ctx, "tenant-a")

	assert.Nil(t, cache.Get(ctx, "tenant-a", "question one"))
	assert.Nil(t, cache.Get(ctx, "tenant-a", "question two"))
	assert.NotNil(t, cache.Get(ctx, "tenant-b", "question one"))
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	cache, kv := testCache(time.Minute)
	ctx := context.Background()

	key := cache.cacheKey("tenant-a", "broken entry")
	require.NoError(t, kv.SetEx(ctx, key, "{not json", time.Minute))

	assert.Nil(t, cache.Get(ctx, "tenant-a", "broken entry"))
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) {
	return "", assert.AnError
}

func (failingKV) SetEx(context.Context, string, string, time.Duration) error {
	return assert.AnError
}

func (failingKV) DeleteByPrefix(context.Context, string) (int, error) {
	return 0, assert.AnError
}

func TestCacheDegradesWhenKVFails(t *testing.T) {
	cache := NewCacheService(failingKV{}, time.Minute, zap.NewNop())
	ctx := context.Background()

	// Reads fail as misses, writes and invalidations are swallowed.
	assert.Nil(t, cache.Get(ctx, "tenant-a", "any question"))
	cache.Put(ctx, "tenant-a", "any question", &CachedAnswer{Status: models.RequestStatusCompleted})
	cache.InvalidateTenant(ctx, "tenant-a")
}

func TestMemoryKVExpiry(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.SetEx(ctx, "k", "v", 10*time.Millisecond))

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	time.Sleep(20 * time.Millisecond)

	got, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryKVDeleteByPrefix(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.SetEx(ctx, "ka:query:a:1", "x", time.Minute))
	require.NoError(t, kv.SetEx(ctx, "ka:query:a:2", "x", time.Minute))
	require.NoError(t, kv.SetEx(ctx, "ka:query:b:1", "x", time.Minute))

	deleted, err := kv.DeleteByPrefix(ctx, "ka:query:a:")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	got, err := kv.Get(ctx, "ka:query:b:1")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}
