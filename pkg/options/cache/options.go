// Package cache provides options of the Redis-backed query and embedding caches.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/nicelyhorse/all-in-rag/pkg/options"
	redisopts "github.com/nicelyhorse/all-in-rag/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 缓存配置。
type Options struct {
	// Enabled 是否启用查询结果缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 查询结果缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 查询缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// EmbeddingEnabled 是否缓存 Embedding 结果。
	EmbeddingEnabled bool `json:"embedding-enabled" mapstructure:"embedding-enabled"`

	// EmbeddingTTL Embedding 缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置，默认关闭。
func NewOptions() *Options {
	return &Options{
		TTL:          time.Hour,
		KeyPrefix:    "rag:query:",
		EmbeddingTTL: 24 * time.Hour,
		Redis:        redisopts.NewOptions(),
	}
}

// Any reports whether some cache needs Redis.
func (o *Options) Any() bool {
	return o.Enabled || o.EmbeddingEnabled
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Cache query results in Redis.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Query cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Query cache key prefix.")
	fs.BoolVar(&o.EmbeddingEnabled, p+"embedding-enabled", o.EmbeddingEnabled, "Cache embeddings in Redis.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, p)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Any() {
		return nil
	}

	var errs []error
	if o.Enabled && o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive"))
	}
	if o.EmbeddingEnabled && o.EmbeddingTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.embedding-ttl must be positive"))
	}
	if o.Redis == nil {
		return append(errs, fmt.Errorf("cache.redis is required when a cache is enabled"))
	}
	return append(errs, o.Redis.Validate()...)
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
