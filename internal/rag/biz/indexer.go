package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/internal/pkg/rag/textutil"
	"github.com/nicelyhorse/all-in-rag/internal/rag/store"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/infra/pool"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

const (
	// DefaultEmbedBatchSize 每次 Embed 调用的片段数。
	DefaultEmbedBatchSize = 32
	// DefaultEmbedWorkers 并发 Embed 调用数。
	DefaultEmbedWorkers = 4
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	Splitter textutil.SplitterConfig

	EmbedBatchSize int
	EmbedWorkers   int

	// RequireNonEmpty 为 true 时，没有任何片段的语料返回 ErrRAGEmptyCorpus；
	// 否则构建空索引并记录警告。
	RequireNonEmpty bool

	// AssumeNormalized 声明 Embedding 已经 L2 归一化，检索时用点积代替余弦。
	AssumeNormalized bool

	// Extensions 目录加载时匹配的扩展名，为空时使用 docutil.DefaultExtensions。
	Extensions []string
}

// DefaultIndexerConfig 返回默认索引配置。
func DefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		Splitter:       textutil.DefaultSplitterConfig(),
		EmbedBatchSize: DefaultEmbedBatchSize,
		EmbedWorkers:   DefaultEmbedWorkers,
	}
}

// Validate 校验索引配置。
func (c *IndexerConfig) Validate() error {
	if err := c.Splitter.Validate(); err != nil {
		return err
	}
	if c.EmbedBatchSize <= 0 {
		return errors.ErrRAGInvalidConfig.WithMessagef("embed batch size must be positive, got %d", c.EmbedBatchSize)
	}
	if c.EmbedWorkers <= 0 {
		return errors.ErrRAGInvalidConfig.WithMessagef("embed workers must be positive, got %d", c.EmbedWorkers)
	}
	return nil
}

// IndexStats 描述一次索引构建。
type IndexStats struct {
	Documents      int           `json:"documents"`
	EmptyDocuments int           `json:"empty_documents"`
	Passages       int           `json:"passages"`
	Batches        int           `json:"batches"`
	Dimension      int           `json:"dimension"`
	Embedder       string        `json:"embedder"`
	Duration       time.Duration `json:"duration"`
}

// Indexer 负责把文档切分、嵌入并构建冻结的内存索引。
type Indexer struct {
	splitter *textutil.Splitter
	embedder llm.EmbeddingProvider
	config   *IndexerConfig
	pool     *pool.Pool
}

// NewIndexer 创建索引器实例。调用方负责 Close。
func NewIndexer(embedder llm.EmbeddingProvider, config *IndexerConfig) (*Indexer, error) {
	if config == nil {
		config = DefaultIndexerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	splitter, err := textutil.NewSplitter(config.Splitter)
	if err != nil {
		return nil, err
	}
	p, err := pool.NewPool("rag-embed", &pool.Config{
		Capacity:       config.EmbedWorkers,
		ExpiryDuration: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &Indexer{splitter: splitter, embedder: embedder, config: config, pool: p}, nil
}

// Close 释放嵌入工作池。
func (i *Indexer) Close() {
	i.pool.Release()
}

// Split 切分所有文档，片段按文档顺序排列。
func (i *Indexer) Split(docs []model.Document) ([]model.Passage, int) {
	var (
		passages []model.Passage
		empty    int
	)
	for _, doc := range docs {
		ps := i.splitter.Split(doc)
		if len(ps) == 0 {
			empty++
		}
		passages = append(passages, ps...)
	}
	return passages, empty
}

// Build 切分并嵌入 docs，构建以 Embedding 供应商身份标记的索引。
// 任一批次嵌入失败时整体失败，不返回部分索引。
func (i *Indexer) Build(ctx context.Context, docs []model.Document) (*store.MemoryIndex, IndexStats, error) {
	start := time.Now()
	identity := llm.Identity(i.embedder)
	passages, empty := i.Split(docs)

	stats := IndexStats{
		Documents:      len(docs),
		EmptyDocuments: empty,
		Passages:       len(passages),
		Embedder:       identity,
	}
	opts := []store.IndexOption{
		store.WithEmbedder(identity),
		store.WithAssumeNormalized(i.config.AssumeNormalized),
	}

	if len(passages) == 0 {
		if i.config.RequireNonEmpty {
			return nil, stats, errors.ErrRAGEmptyCorpus.WithMessagef("%d documents produced no passages", len(docs))
		}
		logger.Warnw("building empty index", "documents", len(docs))
		idx, err := store.NewIndexBuilder(opts...).Build()
		stats.Duration = time.Since(start)
		return idx, stats, err
	}

	vectors, batches, err := i.embed(ctx, passages)
	stats.Batches = batches
	if err != nil {
		return nil, stats, err
	}

	// 按片段顺序写入，插入顺序决定同分结果的先后
	builder := store.NewIndexBuilder(opts...)
	for n, p := range passages {
		if err := builder.Add(vectors[n], p); err != nil {
			return nil, stats, err
		}
	}
	idx, err := builder.Build()
	if err != nil {
		return nil, stats, err
	}

	stats.Dimension = idx.Dimension()
	stats.Duration = time.Since(start)
	logger.Infow("index built",
		"documents", stats.Documents,
		"passages", stats.Passages,
		"batches", stats.Batches,
		"dimension", stats.Dimension,
		"embedder", identity,
		"duration", stats.Duration.String(),
	)
	return idx, stats, nil
}

// embed 在工作池上分批嵌入，结果顺序与 passages 一致。
func (i *Indexer) embed(ctx context.Context, passages []model.Passage) ([][]float32, int, error) {
	size := i.config.EmbedBatchSize
	batches := (len(passages) + size - 1) / size
	vectors := make([][]float32, len(passages))

	err := pool.ForEach(ctx, i.pool, batches, func(ctx context.Context, b int) error {
		lo := b * size
		hi := min(lo+size, len(passages))
		texts := make([]string, hi-lo)
		for n := range texts {
			texts[n] = passages[lo+n].Text
		}

		got, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d/%d: %w", b+1, batches, err)
		}
		if err := llm.CheckBatch(i.embedder.Name(), got, len(texts)); err != nil {
			return fmt.Errorf("embed batch %d/%d: %w", b+1, batches, err)
		}
		copy(vectors[lo:hi], got)
		return nil
	})
	if err != nil {
		return nil, batches, err
	}
	return vectors, batches, nil
}
