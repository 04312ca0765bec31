package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/internal/rag/store"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

// DefaultTopK 默认检索片段数。
const DefaultTopK = 6

// Retrieve 嵌入问题并在索引中检索最相似的 k 个片段，结果按分数降序。
// 嵌入与检索的错误原样返回。
//
// 索引必须由同一个 Embedding 模型构建，否则分数没有意义。
func Retrieve(ctx context.Context, question string, k int, index store.Searcher, embedder llm.EmbeddingProvider) ([]store.SearchResult, error) {
	query, err := embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, err
	}
	return index.Search(query, k)
}

// Passages 按顺序提取检索结果中的片段。
func Passages(results []store.SearchResult) []model.Passage {
	out := make([]model.Passage, len(results))
	for i, r := range results {
		out[i] = r.Passage
	}
	return out
}

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 调用方传入 k == 0 时使用的默认值。
	TopK int
	// MinScore 低于该分数的结果被丢弃，0 表示不过滤。
	MinScore float64
}

// DefaultRetrieverConfig 返回默认检索配置。
func DefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{TopK: DefaultTopK}
}

// Retriever 使用固定的 Embedding 供应商执行检索。
type Retriever struct {
	embedder llm.EmbeddingProvider
	config   *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = DefaultRetrieverConfig()
	}
	return &Retriever{embedder: embedder, config: config}
}

// Retrieve 在 index 中检索，k == 0 时使用 TopK，再按 MinScore 过滤。
func (r *Retriever) Retrieve(ctx context.Context, index store.Searcher, question string, k int) ([]store.SearchResult, error) {
	if k == 0 {
		k = r.config.TopK
	}
	results, err := Retrieve(ctx, question, k, index, r.embedder)
	if err != nil {
		return nil, err
	}

	if r.config.MinScore > 0 {
		kept := results[:0]
		for _, res := range results {
			if res.Score >= r.config.MinScore {
				kept = append(kept, res)
			}
		}
		if dropped := len(results) - len(kept); dropped > 0 {
			logger.Debugw("dropped low-score passages", "dropped", dropped, "min_score", r.config.MinScore)
		}
		results = kept
	}
	return results, nil
}
