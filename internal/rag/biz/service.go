package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/internal/pkg/rag/docutil"
	"github.com/nicelyhorse/all-in-rag/internal/rag/metrics"
	"github.com/nicelyhorse/all-in-rag/internal/rag/store"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/infra/tracing"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/id"
)

const tracerName = "github.com/nicelyhorse/all-in-rag/internal/rag/biz"

// Service 定义 RAG 服务接口。
type Service interface {
	// Index 用 docs 全量重建索引并替换当前索引。
	Index(ctx context.Context, docs []model.Document) (IndexStats, error)
	// IndexDirectory 加载目录中的文档并重建索引。
	IndexDirectory(ctx context.Context, dir string) (IndexStats, error)
	// Query 执行 RAG 查询，k == 0 时使用默认 TopK。
	Query(ctx context.Context, question string, k int) (*model.QueryResult, error)
	// Stats 获取知识库统计信息。
	Stats(ctx context.Context) ServiceStats
	// PromptTemplate 返回生效的提示词模板。
	PromptTemplate() string
	// ClearCache 清空查询缓存与嵌入缓存。
	ClearCache(ctx context.Context) (ClearStats, error)
}

// ServiceConfig RAG 服务配置。
type ServiceConfig struct {
	Indexer   *IndexerConfig
	Retriever *RetrieverConfig
	Generator *GeneratorConfig
	// QueryTimeout 单次查询（嵌入 + 检索 + 生成）的总超时，0 表示不限制。
	QueryTimeout time.Duration
}

// DefaultServiceConfig 返回默认服务配置。
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Indexer:      DefaultIndexerConfig(),
		Retriever:    DefaultRetrieverConfig(),
		Generator:    &GeneratorConfig{},
		QueryTimeout: 2 * time.Minute,
	}
}

// indexState 是一次构建的不可变快照，整体原子替换。
type indexState struct {
	index *store.MemoryIndex
	docs  map[string]model.Document // 只保留元数据，不含 Content
	stats IndexStats
}

// RAGService 组合 Indexer、Retriever 和 Generator 提供完整的 RAG 服务。
//
// 查询读取当前索引快照，无需加锁；重建在新索引上完成后原子替换，
// 进行中的查询继续使用旧索引。
type RAGService struct {
	embedder  llm.EmbeddingProvider
	indexer   *Indexer
	retriever *Retriever
	generator *Generator
	cache     *QueryCache
	metrics   *metrics.RAGMetrics
	ids       id.Generator

	identity     string
	queryTimeout time.Duration

	current atomic.Pointer[indexState]
	buildMu sync.Mutex
}

// NewRAGService 创建 RAG 服务实例。同一个 embedder 用于构建索引和嵌入问题。
// cache 与 m 可以为 nil。
func NewRAGService(
	embedder llm.EmbeddingProvider,
	answerer Answerer,
	cache *QueryCache,
	m *metrics.RAGMetrics,
	config *ServiceConfig,
) (*RAGService, error) {
	if embedder == nil || answerer == nil {
		return nil, errors.ErrRAGInvalidConfig.WithMessage("embedder and answerer are required")
	}
	if config == nil {
		config = DefaultServiceConfig()
	}
	if m == nil {
		m = metrics.New("rag")
	}

	indexer, err := NewIndexer(embedder, config.Indexer)
	if err != nil {
		return nil, err
	}
	generator, err := NewGenerator(answerer, config.Generator)
	if err != nil {
		indexer.Close()
		return nil, err
	}

	return &RAGService{
		embedder:     embedder,
		indexer:      indexer,
		retriever:    NewRetriever(embedder, config.Retriever),
		generator:    generator,
		cache:        cache,
		metrics:      m,
		ids:          id.NewULIDGenerator(),
		identity:     llm.Identity(embedder),
		queryTimeout: config.QueryTimeout,
	}, nil
}

// Close 释放索引工作池。
func (s *RAGService) Close() {
	s.indexer.Close()
}

// Index 用 docs 全量重建索引并替换当前索引。并发的重建按顺序执行。
func (s *RAGService) Index(ctx context.Context, docs []model.Document) (IndexStats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	idx, stats, err := s.indexer.Build(ctx, docs)
	s.metrics.RecordIndexing(stats.Duration, stats.Documents, stats.Passages, err)
	if err != nil {
		logger.Errorw("index build failed", "documents", len(docs), "error", err.Error())
		return stats, indexError(err)
	}

	meta := make(map[string]model.Document, len(docs))
	for _, d := range docs {
		d.Content = ""
		meta[d.ID] = d
	}
	if err := s.swap(&indexState{index: idx, docs: meta, stats: stats}); err != nil {
		return stats, err
	}
	return stats, nil
}

// IndexDirectory 加载目录中的文档并重建索引。
func (s *RAGService) IndexDirectory(ctx context.Context, dir string) (IndexStats, error) {
	docs, err := docutil.LoadDocuments(dir, s.indexer.config.Extensions)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, 0, err)
		return IndexStats{}, indexError(err)
	}
	return s.Index(ctx, docs)
}

// indexError 给没有错误码的构建错误补上 ErrRAGIndexFailed，已有错误码的保持不变，
// 以免改变对外的 HTTP 状态。
func indexError(err error) error {
	if errors.GetCode(err) < 0 {
		return errors.ErrRAGIndexFailed.WithCause(err)
	}
	return err
}

// SetIndex 直接安装一个预先构建的索引。索引必须由本服务的 embedder 构建。
func (s *RAGService) SetIndex(idx *store.MemoryIndex) error {
	return s.swap(&indexState{
		index: idx,
		stats: IndexStats{Passages: idx.Len(), Dimension: idx.Dimension(), Embedder: idx.Embedder()},
	})
}

func (s *RAGService) swap(state *indexState) error {
	if got := state.index.Embedder(); got != s.identity {
		return errors.ErrRAGEmbedderMismatch.WithMessagef(
			"index built by %q cannot be queried with %q", got, s.identity)
	}
	old := s.current.Swap(state)
	logger.Infow("index swapped",
		"passages", state.index.Len(),
		"fingerprint", state.index.Fingerprint(),
		"replaced", old != nil,
	)
	return nil
}

// Query 执行 RAG 查询：检索 → 拼接上下文 → 生成答案。
// 没有相关片段时上下文为空，仍然调用 Answerer。
func (s *RAGService) Query(ctx context.Context, question string, k int) (result *model.QueryResult, err error) {
	began := time.Now()
	cacheHit := false
	defer func() { s.metrics.RecordQuery(cacheHit, err) }()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("question must not be empty")
	}
	if k < 0 {
		return nil, errors.ErrRAGInvalidRequest.WithMessagef("k must not be negative, got %d", k)
	}
	if k == 0 {
		k = s.retriever.config.TopK
	}

	state := s.current.Load()
	if state == nil {
		return nil, errors.ErrRAGIndexNotReady
	}
	fp := state.index.Fingerprint()

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	if cached, cerr := s.cache.Get(ctx, fp, k, question); cerr == nil && cached != nil {
		cacheHit = true
		cached.Cached = true
		return cached, nil
	}

	start := time.Now()
	rctx, span := tracing.StartSpan(ctx, tracerName, "rag.retrieve",
		trace.WithAttributes(attribute.Int("rag.k", k), attribute.String("rag.index", fp)))
	results, err := s.retriever.Retrieve(rctx, state.index, question, k)
	span.SetAttributes(attribute.Int("rag.results", len(results)))
	tracing.EndSpan(span, err)
	s.metrics.RecordRetrieval(time.Since(start), len(results), err)
	if err != nil {
		return nil, s.queryError(ctx, "retrieve", err)
	}

	contextText := AssembleContext(Passages(results))

	start = time.Now()
	actx, span := tracing.StartSpan(ctx, tracerName, "rag.answer",
		trace.WithAttributes(attribute.Int("rag.context_bytes", len(contextText))))
	answer, err := s.generator.Generate(actx, contextText, question)
	tracing.EndSpan(span, err)
	s.metrics.RecordAnswer(time.Since(start), err)
	if err != nil {
		return nil, s.queryError(ctx, "answer", err)
	}

	result = &model.QueryResult{
		ID:        s.ids.Generate(),
		Question:  question,
		Answer:    answer,
		Context:   contextText,
		Prompt:    FillPrompt(s.generator.PromptTemplate(), contextText, question),
		Sources:   state.sources(results),
		CreatedAt: time.Now(),
	}

	if err := s.cache.Set(ctx, fp, k, result); err != nil {
		logger.Debugw("query result not cached", "error", err.Error())
	}

	logger.Infow("query answered",
		"id", result.ID,
		"k", k,
		"sources", len(result.Sources),
		"duration", time.Since(began).String(),
	)
	return result, nil
}

// queryError 把本服务设置的超时转换为 ErrRAGQueryTimeout；没有错误码的错误
// 包装为 ErrRAGQueryFailed，其余原样返回。
func (s *RAGService) queryError(ctx context.Context, stage string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && s.queryTimeout > 0 {
		return errors.ErrRAGQueryTimeout.WithMessagef("query %s exceeded %s", stage, s.queryTimeout).WithCause(err)
	}
	if errors.GetCode(err) < 0 {
		return errors.ErrRAGQueryFailed.WithMessagef("query %s failed", stage).WithCause(err)
	}
	return err
}

func (st *indexState) sources(results []store.SearchResult) []model.Source {
	out := make([]model.Source, len(results))
	for i, r := range results {
		doc := st.docs[r.Passage.SourceID]
		out[i] = model.Source{
			DocumentID: r.Passage.SourceID,
			Title:      doc.Title,
			Path:       doc.Source,
			Offset:     r.Passage.Offset,
			Length:     r.Passage.Length,
			Text:       r.Passage.Text,
			Score:      r.Score,
			Rank:       r.Rank,
		}
	}
	return out
}

// ServiceStats 知识库与服务统计信息。
type ServiceStats struct {
	Ready       bool             `json:"ready"`
	Embedder    string           `json:"embedder"`
	Providers   []string         `json:"providers"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	BuiltAt     *time.Time       `json:"built_at,omitempty"`
	Index       IndexStats       `json:"index"`
	Cache       CacheStats       `json:"cache"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// Stats 获取知识库统计信息。缓存统计失败时仅记录日志。
func (s *RAGService) Stats(ctx context.Context) ServiceStats {
	stats := ServiceStats{
		Embedder:  s.identity,
		Providers: llm.ListProviders(),
		Metrics:   s.metrics.Stats(),
	}
	if state := s.current.Load(); state != nil {
		builtAt := state.index.BuiltAt()
		stats.Ready = true
		stats.Fingerprint = state.index.Fingerprint()
		stats.BuiltAt = &builtAt
		stats.Index = state.stats
	}
	if s.cache.Enabled() {
		cs, err := s.cache.Stats(ctx)
		if err != nil {
			logger.Warnw("failed to collect cache stats", "error", err.Error())
		}
		stats.Cache = cs
	}
	return stats
}

// PromptTemplate 返回生效的提示词模板。
func (s *RAGService) PromptTemplate() string {
	return s.generator.PromptTemplate()
}

// ClearStats 缓存清理结果。
type ClearStats struct {
	Queries    int  `json:"queries"`
	Embeddings bool `json:"embeddings"`
}

// cacheClearer 由带缓存的 embedder 实现。
type cacheClearer interface {
	ClearCache(ctx context.Context) error
}

// ClearCache 清空查询缓存，并沿包装链找到嵌入缓存一并清空。
// 索引本身不受影响。
func (s *RAGService) ClearCache(ctx context.Context) (ClearStats, error) {
	var out ClearStats
	if s.cache.Enabled() {
		n, err := s.cache.Clear(ctx)
		if err != nil {
			return out, err
		}
		out.Queries = n
	}

	var p llm.EmbeddingProvider = s.embedder
	for p != nil {
		if c, ok := p.(cacheClearer); ok {
			if err := c.ClearCache(ctx); err != nil {
				return out, err
			}
			out.Embeddings = true
			break
		}
		w, ok := p.(llm.Wrapper)
		if !ok {
			break
		}
		p = w.Unwrap()
	}

	logger.Infow("caches cleared", "queries", out.Queries, "embeddings", out.Embeddings)
	return out, nil
}

// Metrics 返回服务的指标实例。
func (s *RAGService) Metrics() *metrics.RAGMetrics {
	return s.metrics
}

var _ Service = (*RAGService)(nil)
