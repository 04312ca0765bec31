package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/internal/model"
)

func setupTestCache(t *testing.T, enabled bool) (*QueryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewQueryCache(client, &QueryCacheConfig{
		Enabled:   enabled,
		TTL:       time.Hour,
		KeyPrefix: "test:rag:",
	}), mr
}

func TestNewQueryCache_WithNilConfig(t *testing.T) {
	cache := NewQueryCache(nil, nil)
	assert.False(t, cache.config.Enabled)
	assert.Equal(t, time.Hour, cache.config.TTL)
	assert.Equal(t, "rag:query:", cache.config.KeyPrefix)
	assert.False(t, cache.Enabled())
}

func TestQueryCache_CacheKey(t *testing.T) {
	cache, _ := setupTestCache(t, true)

	base := cache.cacheKey("fp1", 6, "什么是 RAG？")
	assert.Equal(t, base, cache.cacheKey("fp1", 6, "什么是 RAG？"))
	assert.NotEqual(t, base, cache.cacheKey("fp2", 6, "什么是 RAG？"), "rebuilt index must not share entries")
	assert.NotEqual(t, base, cache.cacheKey("fp1", 3, "什么是 RAG？"))
	assert.NotEqual(t, base, cache.cacheKey("fp1", 6, "RAG 是什么？"))
	assert.Contains(t, base, "test:rag:")
	assert.Len(t, base, len("test:rag:")+64)
}

func TestQueryCache_SetAndGet(t *testing.T) {
	cache, mr := setupTestCache(t, true)
	ctx := context.Background()

	miss, err := cache.Get(ctx, "fp", 6, "q")
	require.NoError(t, err)
	assert.Nil(t, miss)

	result := &model.QueryResult{
		ID:       "01J00000000000000000000000",
		Question: "q",
		Answer:   "a",
		Context:  "c1\n\nc2",
		Sources:  []model.Source{{DocumentID: "d", Text: "c1", Score: 0.9, Rank: 1}},
	}
	require.NoError(t, cache.Set(ctx, "fp", 6, result))

	got, err := cache.Get(ctx, "fp", 6, "q")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, result.Answer, got.Answer)
	assert.Equal(t, result.Sources, got.Sources)

	mr.FastForward(2 * time.Hour)
	expired, err := cache.Get(ctx, "fp", 6, "q")
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestQueryCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestCache(t, true)
	ctx := context.Background()

	key := cache.cacheKey("fp", 1, "q")
	require.NoError(t, mr.Set(key, "{not json"))

	got, err := cache.Get(ctx, "fp", 1, "q")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(key))
}

func TestQueryCache_Disabled(t *testing.T) {
	cache, mr := setupTestCache(t, false)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "fp", 1, &model.QueryResult{Question: "q"}))
	assert.Empty(t, mr.Keys())

	got, err := cache.Get(ctx, "fp", 1, "q")
	require.NoError(t, err)
	assert.Nil(t, got)

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, stats.Enabled)
}

func TestQueryCache_RedisDown(t *testing.T) {
	cache, mr := setupTestCache(t, true)
	mr.Close()

	_, err := cache.Get(context.Background(), "fp", 1, "q")
	assert.Error(t, err)
}

func TestQueryCache_ClearAndStats(t *testing.T) {
	cache, mr := setupTestCache(t, true)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(ctx, "fp", 1, &model.QueryResult{Question: q}))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.KeyCount)
	assert.Equal(t, "1h0m0s", stats.TTL)

	deleted, err := cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.True(t, mr.Exists("other:key"))
}
