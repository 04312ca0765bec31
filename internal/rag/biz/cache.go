package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultQueryCacheConfig 返回默认（禁用）缓存配置。
func DefaultQueryCacheConfig() *QueryCacheConfig {
	return &QueryCacheConfig{
		Enabled:   false,
		TTL:       time.Hour,
		KeyPrefix: "rag:query:",
	}
}

// QueryCache 查询结果缓存。
//
// 键由索引指纹、k 和问题共同决定，重建索引后旧结果自然失效。
type QueryCache struct {
	redis  goredis.UniversalClient
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis goredis.UniversalClient, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = DefaultQueryCacheConfig()
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// Enabled 报告缓存是否可用。
func (c *QueryCache) Enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// cacheKey 基于索引指纹、k 与问题生成缓存键（SHA256）。
func (c *QueryCache) cacheKey(fingerprint string, k int, question string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k)))
	h.Write([]byte{0})
	h.Write([]byte(question))
	return c.config.KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get 从缓存获取查询结果。未命中时返回 (nil, nil)。
func (c *QueryCache) Get(ctx context.Context, fingerprint string, k int, question string) (*model.QueryResult, error) {
	if !c.Enabled() {
		return nil, nil
	}

	key := c.cacheKey(fingerprint, k, question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			logger.Debugw("query cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from query cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("dropping corrupt query cache entry", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, nil
	}

	logger.Debugw("query cache hit", "key", key)
	return &result, nil
}

// Set 将查询结果写入缓存。
func (c *QueryCache) Set(ctx context.Context, fingerprint string, k int, result *model.QueryResult) error {
	if !c.Enabled() {
		return nil
	}

	key := c.cacheKey(fingerprint, k, result.Question)
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set query cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// Clear 清除所有查询缓存，返回删除的键数。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete query cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	logger.Infow("cleared query cache", "deleted_count", deleted)
	return deleted, nil
}

// CacheStats 缓存统计信息。
type CacheStats struct {
	Enabled   bool   `json:"enabled"`
	KeyCount  int    `json:"key_count"`
	TTL       string `json:"ttl,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// Stats 获取缓存统计信息。
func (c *QueryCache) Stats(ctx context.Context) (CacheStats, error) {
	if !c.Enabled() {
		return CacheStats{}, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
	count := 0
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return CacheStats{}, err
	}

	return CacheStats{
		Enabled:   true,
		KeyCount:  count,
		TTL:       c.config.TTL.String(),
		KeyPrefix: c.config.KeyPrefix,
	}, nil
}
