// Package local 提供无需网络的确定性 Embedding 供应商。
//
// 文本被切分为词元（拉丁字母按单词，CJK 按单字与相邻双字），每个词元经
// FNV-1a 哈希映射到固定维度的桶，累加带符号计数后做 L2 归一化。
// 相同文本总是得到相同向量，适合离线运行与测试。
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

// ProviderName 是本地供应商的名称标识符
const ProviderName = "local"

// DefaultDimension 默认向量维度。
const DefaultDimension = 256

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Provider 基于特征哈希的 Embedding 供应商。
type Provider struct {
	dim int
}

// NewProvider 从配置 map 创建本地供应商，支持 "dimension" 键。
func NewProvider(m map[string]any) (llm.EmbeddingProvider, error) {
	return New(llm.ConfigInt(m, "dimension", DefaultDimension))
}

// New 创建指定维度的本地供应商。
func New(dim int) (*Provider, error) {
	if dim <= 0 {
		return nil, errors.ErrLLMConfig.WithMessagef("local: dimension must be positive, got %d", dim)
	}
	return &Provider{dim: dim}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// EmbeddingModel 返回模型标识，维度不同的向量不可混用。
func (p *Provider) EmbeddingModel() string {
	return fmt.Sprintf("hashing-%d", p.dim)
}

// Dimension 返回向量维度。
func (p *Provider) Dimension() int {
	return p.dim
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, llm.Wrap(ProviderName, "embed", err)
		}
		out[i] = p.vector(text)
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.Wrap(ProviderName, "embed", err)
	}
	return p.vector(text), nil
}

func (p *Provider) vector(text string) []float32 {
	v := make([]float32, p.dim)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dim))
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// Tokenize 把文本切分为小写单词与 CJK 单字、双字词元。
func Tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
		prev   rune
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
			if prev != 0 {
				tokens = append(tokens, string([]rune{prev, r}))
			}
			prev = r
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
		prev = 0
	}
	flush()
	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

var _ llm.EmbeddingProvider = (*Provider)(nil)
