package store

import (
	"cmp"
	"encoding/binary"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/internal/pkg/rag/textutil"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

// MemoryIndex 是构建后不可变的内存向量索引。
type MemoryIndex struct {
	entries     []Entry
	norms       []float64
	dim         int
	opts        indexOptions
	fingerprint string
	builtAt     time.Time
}

var _ Searcher = (*MemoryIndex)(nil)

// Build 从 entries 构建索引，entries 的顺序即插入顺序。
// 向量会被复制，调用方之后修改入参不影响索引。
// 空输入构建出空索引；向量长度不一致时返回 *DimensionMismatchError。
func Build(entries []Entry, opts ...IndexOption) (*MemoryIndex, error) {
	return build(entries, true, opts)
}

// build 构建索引；clone 为 false 时 entries 的向量由索引接管。
func build(entries []Entry, clone bool, opts []IndexOption) (*MemoryIndex, error) {
	var o indexOptions
	for _, opt := range opts {
		opt(&o)
	}

	idx := &MemoryIndex{
		entries: make([]Entry, len(entries)),
		norms:   make([]float64, len(entries)),
		opts:    o,
		builtAt: time.Now(),
	}
	if len(entries) > 0 {
		idx.dim = len(entries[0].Vector)
	}

	for i, e := range entries {
		if len(e.Vector) != idx.dim {
			return nil, &DimensionMismatchError{Expected: idx.dim, Got: len(e.Vector), Position: i}
		}
		if clone {
			e.Vector = slices.Clone(e.Vector)
		}
		idx.entries[i] = e
		idx.norms[i] = textutil.Norm(e.Vector)
	}
	idx.fingerprint = fingerprint(idx)
	return idx, nil
}

// fingerprint 摘要索引内容，相同的输入总是得到相同的指纹。
func fingerprint(idx *MemoryIndex) string {
	var buf []byte
	buf = append(buf, idx.opts.embedder...)
	buf = strconv.AppendInt(buf, int64(idx.dim), 10)
	buf = strconv.AppendBool(buf, idx.opts.assumeNormalized)
	for _, e := range idx.entries {
		buf = append(buf, 0)
		buf = append(buf, e.Passage.SourceID...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Passage.Offset))
		buf = append(buf, e.Passage.Text...)
	}
	return textutil.HashString(string(buf))
}

// Search 返回与 query 余弦相似度最高的 min(k, Len()) 条结果，按分数降序排列，
// 分数相同时插入顺序靠前者优先。范数为 0 的向量得分为 0，NaN 分数排在最后。
func (idx *MemoryIndex) Search(query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, errors.ErrRAGInvalidConfig.WithMessagef("k must be positive, got %d", k)
	}
	if len(idx.entries) == 0 {
		return []SearchResult{}, nil
	}
	if len(query) != idx.dim {
		return nil, &DimensionMismatchError{Expected: idx.dim, Got: len(query), Position: -1}
	}

	var qnorm float64
	if !idx.opts.assumeNormalized {
		qnorm = textutil.Norm(query)
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(idx.entries))
	for i, e := range idx.entries {
		scores[i] = scored{pos: i, score: idx.score(query, qnorm, i, e.Vector)}
	}

	// cmp.Compare 把 NaN 排在所有数值之前，反向比较后 NaN 排在最后，
	// 排序仍是严格弱序，NaN 之间保持插入顺序。
	slices.SortStableFunc(scores, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	n := min(k, len(scores))
	results := make([]SearchResult, n)
	for rank := 0; rank < n; rank++ {
		results[rank] = SearchResult{
			Passage: idx.entries[scores[rank].pos].Passage,
			Score:   scores[rank].score,
			Rank:    rank,
		}
	}
	return results, nil
}

func (idx *MemoryIndex) score(query []float32, qnorm float64, i int, v []float32) float64 {
	dot := textutil.Dot(query, v)
	if idx.opts.assumeNormalized {
		return dot
	}
	if qnorm == 0 || idx.norms[i] == 0 {
		return 0
	}
	return dot / (qnorm * idx.norms[i])
}

// Add 总是失败：索引构建后即冻结。
func (idx *MemoryIndex) Add(Entry) error {
	return errors.ErrRAGIndexFrozen
}

// Len 返回条目数量。
func (idx *MemoryIndex) Len() int { return len(idx.entries) }

// Dimension 返回向量维度，空索引为 0。
func (idx *MemoryIndex) Dimension() int { return idx.dim }

// Embedder 返回构建索引时记录的嵌入模型名称。
func (idx *MemoryIndex) Embedder() string { return idx.opts.embedder }

// AssumeNormalized 报告索引是否按已归一化向量计算分数。
func (idx *MemoryIndex) AssumeNormalized() bool { return idx.opts.assumeNormalized }

// Fingerprint 返回索引内容的摘要，可用作缓存键的一部分。
func (idx *MemoryIndex) Fingerprint() string { return idx.fingerprint }

// BuiltAt 返回构建时间。
func (idx *MemoryIndex) BuiltAt() time.Time { return idx.builtAt }

// IndexBuilder 逐条收集条目，Build 之后冻结。
type IndexBuilder struct {
	mu      sync.Mutex
	entries []Entry
	opts    []IndexOption
	frozen  bool
}

// NewIndexBuilder 创建构建器，opts 会传给最终的 Build。
func NewIndexBuilder(opts ...IndexOption) *IndexBuilder {
	return &IndexBuilder{opts: opts}
}

// Add 追加一条记录。维度与第一条不一致时返回 *DimensionMismatchError，
// Build 之后返回 ErrRAGIndexFrozen。
func (b *IndexBuilder) Add(vector []float32, passage model.Passage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return errors.ErrRAGIndexFrozen
	}
	if len(b.entries) > 0 && len(vector) != len(b.entries[0].Vector) {
		return &DimensionMismatchError{
			Expected: len(b.entries[0].Vector),
			Got:      len(vector),
			Position: len(b.entries),
		}
	}
	b.entries = append(b.entries, Entry{Vector: slices.Clone(vector), Passage: passage})
	return nil
}

// Len 返回已收集的条目数。
func (b *IndexBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Build 冻结构建器并生成索引，只能调用一次。
func (b *IndexBuilder) Build() (*MemoryIndex, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return nil, errors.ErrRAGIndexFrozen
	}
	b.frozen = true
	entries := b.entries
	b.entries = nil
	return build(entries, false, b.opts)
}
