package store

import (
	"fmt"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

// Entry 是索引中的一条记录：文本块及其嵌入向量。
type Entry struct {
	Vector  []float32
	Passage model.Passage
}

// SearchResult 表示检索结果。
type SearchResult struct {
	Passage model.Passage `json:"passage"`
	// Score 余弦相似度，范围 [-1, 1]。
	Score float64 `json:"score"`
	// Rank 从 0 开始的排名。
	Rank int `json:"rank"`
}

// Searcher 是只读的向量检索接口。
type Searcher interface {
	Search(query []float32, k int) ([]SearchResult, error)
	Len() int
	Dimension() int
}

// IndexOption 配置索引构建。
type IndexOption func(*indexOptions)

type indexOptions struct {
	assumeNormalized bool
	embedder         string
}

// WithAssumeNormalized 声明所有向量（包括查询向量）已做 L2 归一化，
// 检索时直接使用点积，跳过范数计算。
func WithAssumeNormalized(v bool) IndexOption {
	return func(o *indexOptions) {
		o.assumeNormalized = v
	}
}

// WithEmbedder 记录构建索引所用的嵌入模型名称。
func WithEmbedder(name string) IndexOption {
	return func(o *indexOptions) {
		o.embedder = name
	}
}

// DimensionMismatchError 表示向量维度不一致。
// Position 为出错条目的下标，查询向量出错时为 -1。
type DimensionMismatchError struct {
	Expected int
	Got      int
	Position int
}

func (e *DimensionMismatchError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("query vector dimension %d does not match index dimension %d", e.Got, e.Expected)
	}
	return fmt.Sprintf("entry %d has dimension %d, expected %d", e.Position, e.Got, e.Expected)
}

// Unwrap 返回对应的错误码，errors.Is(err, errors.ErrRAGDimensionMismatch) 成立。
func (e *DimensionMismatchError) Unwrap() error {
	return errors.ErrRAGDimensionMismatch.WithMessage(e.Error())
}
