// Package metrics 提供 RAG 服务的业务指标收集。
//
// 每个 RAGService 持有自己的 RAGMetrics 实例，不存在全局单例。
package metrics

import (
	"time"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	obs "github.com/nicelyhorse/all-in-rag/pkg/observability/metrics"
)

// RAGMetrics RAG 服务业务指标。
type RAGMetrics struct {
	registry *obs.Registry
	start    time.Time

	// 查询
	queries     obs.Counter
	cacheHits   obs.Counter
	cacheMisses obs.Counter
	queryErrors obs.Counter

	// 检索
	retrievalSeconds obs.Histogram
	retrievalErrors  obs.Counter
	emptyRetrievals  obs.Counter

	// 生成
	answerSeconds  obs.Histogram
	answerFailures obs.CounterVec

	// 索引
	indexBuilds    obs.Counter
	indexErrors    obs.Counter
	indexSeconds   obs.Histogram
	indexDocuments obs.Gauge
	indexPassages  obs.Gauge
}

// New 创建指标实例，namespace 作为所有指标名前缀（如 "rag"）。
func New(namespace string) *RAGMetrics {
	n := func(s string) string { return namespace + "_" + s }
	m := &RAGMetrics{
		registry: obs.NewRegistry(),
		start:    time.Now(),

		queries:     obs.NewCounter(n("queries_total"), "Total number of RAG queries."),
		cacheHits:   obs.NewCounter(n("query_cache_hits_total"), "Queries answered from the query cache."),
		cacheMisses: obs.NewCounter(n("query_cache_misses_total"), "Successful queries not found in the query cache."),
		queryErrors: obs.NewCounter(n("query_errors_total"), "Queries that returned an error."),

		retrievalSeconds: obs.NewHistogram(n("retrieval_duration_seconds"), "Embed plus search latency.", nil),
		retrievalErrors:  obs.NewCounter(n("retrieval_errors_total"), "Failed retrievals."),
		emptyRetrievals:  obs.NewCounter(n("retrieval_empty_total"), "Retrievals that produced an empty context."),

		answerSeconds:  obs.NewHistogram(n("answer_duration_seconds"), "Answerer call latency.", nil),
		answerFailures: obs.NewCounterVec(n("answer_failures_total"), "Answerer failures by kind.", "kind"),

		indexBuilds:    obs.NewCounter(n("index_builds_total"), "Completed index builds."),
		indexErrors:    obs.NewCounter(n("index_errors_total"), "Failed index builds."),
		indexSeconds:   obs.NewHistogram(n("index_build_duration_seconds"), "Index build latency.", []float64{0.1, 1, 5, 15, 60, 300, 900}),
		indexDocuments: obs.NewGauge(n("index_documents"), "Documents in the current index."),
		indexPassages:  obs.NewGauge(n("index_passages"), "Passages in the current index."),
	}
	m.registry.MustRegister(
		m.queries, m.cacheHits, m.cacheMisses, m.queryErrors,
		m.retrievalSeconds, m.retrievalErrors, m.emptyRetrievals,
		m.answerSeconds, m.answerFailures,
		m.indexBuilds, m.indexErrors, m.indexSeconds, m.indexDocuments, m.indexPassages,
	)
	return m
}

// RecordQuery 记录一次查询。缓存命中/未命中只在成功时计数。
func (m *RAGMetrics) RecordQuery(cacheHit bool, err error) {
	m.queries.Inc()
	switch {
	case err != nil:
		m.queryErrors.Inc()
	case cacheHit:
		m.cacheHits.Inc()
	default:
		m.cacheMisses.Inc()
	}
}

// RecordRetrieval 记录检索耗时与结果数量。
func (m *RAGMetrics) RecordRetrieval(d time.Duration, results int, err error) {
	if err != nil {
		m.retrievalErrors.Inc()
		return
	}
	m.retrievalSeconds.Observe(d.Seconds())
	if results == 0 {
		m.emptyRetrievals.Inc()
	}
}

// RecordAnswer 记录一次 Answerer 调用，失败按 llm.FailureKind 分类。
func (m *RAGMetrics) RecordAnswer(d time.Duration, err error) {
	if err != nil {
		m.answerFailures.WithLabelValues(llm.Classify(err).String()).Inc()
		return
	}
	m.answerSeconds.Observe(d.Seconds())
}

// RecordIndexing 记录一次索引构建。成功时更新当前索引规模。
func (m *RAGMetrics) RecordIndexing(d time.Duration, documents, passages int, err error) {
	if err != nil {
		m.indexErrors.Inc()
		return
	}
	m.indexBuilds.Inc()
	m.indexSeconds.Observe(d.Seconds())
	m.indexDocuments.Set(float64(documents))
	m.indexPassages.Set(float64(passages))
}

// Snapshot 是指标的只读快照（用于 API）。
type Snapshot struct {
	Queries      uint64  `json:"queries"`
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	QueryErrors  uint64  `json:"query_errors"`

	Retrievals          uint64  `json:"retrievals"`
	EmptyRetrievals     uint64  `json:"empty_retrievals"`
	AvgRetrievalSeconds float64 `json:"avg_retrieval_seconds"`

	Answers          uint64  `json:"answers"`
	AvgAnswerSeconds float64 `json:"avg_answer_seconds"`

	IndexBuilds    uint64  `json:"index_builds"`
	IndexErrors    uint64  `json:"index_errors"`
	IndexDocuments int     `json:"index_documents"`
	IndexPassages  int     `json:"index_passages"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Stats 返回当前统计信息。
func (m *RAGMetrics) Stats() Snapshot {
	s := Snapshot{
		Queries:         uint64(m.queries.Get()),
		CacheHits:       uint64(m.cacheHits.Get()),
		CacheMisses:     uint64(m.cacheMisses.Get()),
		QueryErrors:     uint64(m.queryErrors.Get()),
		Retrievals:      m.retrievalSeconds.Count(),
		EmptyRetrievals: uint64(m.emptyRetrievals.Get()),
		Answers:         m.answerSeconds.Count(),
		IndexBuilds:     uint64(m.indexBuilds.Get()),
		IndexErrors:     uint64(m.indexErrors.Get()),
		IndexDocuments:  int(m.indexDocuments.Get()),
		IndexPassages:   int(m.indexPassages.Get()),
		UptimeSeconds:   time.Since(m.start).Seconds(),
	}
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(total)
	}
	if s.Retrievals > 0 {
		s.AvgRetrievalSeconds = m.retrievalSeconds.Sum() / float64(s.Retrievals)
	}
	if s.Answers > 0 {
		s.AvgAnswerSeconds = m.answerSeconds.Sum() / float64(s.Answers)
	}
	return s
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export() string {
	return m.registry.Export()
}
