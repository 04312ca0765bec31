package llm

import (
	"context"
	"math"
)

// L2Normalize 返回 v 的单位向量副本。零向量原样返回（仍为零）。
func L2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// NormalizingEmbeddingProvider 对底层供应商返回的向量做 L2 归一化，
// 使点积等于余弦相似度。
type NormalizingEmbeddingProvider struct {
	provider EmbeddingProvider
}

// NewNormalizingEmbeddingProvider 创建归一化包装器。
func NewNormalizingEmbeddingProvider(provider EmbeddingProvider) *NormalizingEmbeddingProvider {
	return &NormalizingEmbeddingProvider{provider: provider}
}

// Embed 为多个文本生成归一化的向量嵌入。
func (n *NormalizingEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := n.provider.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = L2Normalize(v)
	}
	return out, nil
}

// EmbedSingle 为单个文本生成归一化的向量嵌入。
func (n *NormalizingEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := n.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	return L2Normalize(v), nil
}

// Name 返回底层供应商名称。
func (n *NormalizingEmbeddingProvider) Name() string {
	return n.provider.Name() + "-normalized"
}

// IdentityTag 使归一化向量与原始向量的身份标识不同，缓存与索引不会混用。
func (n *NormalizingEmbeddingProvider) IdentityTag() string {
	return "l2"
}

// Unwrap 返回底层供应商。
func (n *NormalizingEmbeddingProvider) Unwrap() EmbeddingProvider {
	return n.provider
}

var (
	_ EmbeddingProvider = (*NormalizingEmbeddingProvider)(nil)
	_ IdentityTagger    = (*NormalizingEmbeddingProvider)(nil)
)
