package llm

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, base EmbeddingProvider) (*CachedEmbeddingProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCachedEmbeddingProvider(base, client, &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       time.Hour,
		KeyPrefix: "test:emb:",
	}), mr
}

func TestCachedEmbeddingProvider_HitAndMiss(t *testing.T) {
	base := &mockProvider{name: "m", model: "v1"}
	cache, mr := setupCache(t, base)
	ctx := context.Background()

	first, err := cache.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, 1, base.calls)

	// 部分命中：只为未缓存的文本调用底层供应商
	var asked []string
	base.embed = func(texts []string) ([][]float32, error) {
		asked = texts
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = []float32{float32(len(text)), 1, 0}
		}
		return out, nil
	}
	second, err := cache.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ccc"}, asked)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])

	single, err := cache.EmbedSingle(ctx, "ccc")
	require.NoError(t, err)
	assert.Equal(t, second[1], single)
	assert.Equal(t, 2, base.calls)

	for _, key := range mr.Keys() {
		assert.Contains(t, key, "test:emb:m:v1:")
		assert.InDelta(t, time.Hour, mr.TTL(key), float64(time.Second))
	}
}

func TestCachedEmbeddingProvider_CorruptEntry(t *testing.T) {
	base := &mockProvider{name: "m"}
	cache, mr := setupCache(t, base)
	ctx := context.Background()

	require.NoError(t, mr.Set(cache.cacheKey("a"), "not-json"))
	v, err := cache.EmbedSingle(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 0}, v)
	assert.Equal(t, 1, base.calls)
}

func TestCachedEmbeddingProvider_RedisDown(t *testing.T) {
	base := &mockProvider{name: "m"}
	cache, mr := setupCache(t, base)
	mr.Close()

	v, err := cache.EmbedSingle(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1, 0}, v)
}

func TestCachedEmbeddingProvider_Disabled(t *testing.T) {
	base := &mockProvider{name: "m"}
	cache := NewCachedEmbeddingProvider(base, nil, nil)

	_, err := cache.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	_, err = cache.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls)
	assert.NoError(t, cache.ClearCache(context.Background()))
}

func TestCachedEmbeddingProvider_MalformedBatch(t *testing.T) {
	base := &mockProvider{name: "m", embed: func([]string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}}
	cache, _ := setupCache(t, base)

	_, err := cache.Embed(context.Background(), []string{"a", "b"})
	assert.Equal(t, FailureMalformedResponse, Classify(err))
}

func TestCachedEmbeddingProvider_ClearCache(t *testing.T) {
	cache, mr := setupCache(t, &mockProvider{name: "m"})
	ctx := context.Background()

	_, err := cache.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, mr.Set("other:key", "x"))

	require.NoError(t, cache.ClearCache(ctx))
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestCachedEmbeddingProvider_NormalizedNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := &EmbeddingCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "rag:emb:"}
	ctx := context.Background()

	base := &mockProvider{name: "m", model: "v1"}
	raw := NewCachedEmbeddingProvider(base, client, cfg)
	rawVec, err := raw.EmbedSingle(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1, 0}, rawVec)

	// 同一个 Redis 上开启归一化后，不能读到之前写入的原始向量
	normalized := NewCachedEmbeddingProvider(NewNormalizingEmbeddingProvider(base), client, cfg)
	assert.NotEqual(t, raw.ns, normalized.ns)

	v, err := normalized.EmbedSingle(ctx, "hello")
	require.NoError(t, err)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.Equal(t, 2, base.calls)

	var l2Keys int
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "rag:emb:m:v1:l2:") {
			l2Keys++
		}
	}
	assert.Equal(t, 1, l2Keys)
	assert.Len(t, mr.Keys(), 2)
}

func TestCachedEmbeddingProvider_PassThroughChecksBatch(t *testing.T) {
	base := &mockProvider{name: "m", embed: func([]string) ([][]float32, error) {
		return nil, nil
	}}
	cache := NewCachedEmbeddingProvider(base, nil, nil)

	assert.NotPanics(t, func() {
		_, err := cache.EmbedSingle(context.Background(), "a")
		assert.Equal(t, FailureMalformedResponse, Classify(err))
	})

	_, err := cache.Embed(context.Background(), []string{"a", "b"})
	assert.Equal(t, FailureMalformedResponse, Classify(err))
}
