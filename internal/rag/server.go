// Package ragsvc provides the RAG Service server implementation.
package ragsvc

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/kart-io/version"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nicelyhorse/all-in-rag/internal/pkg/rag/textutil"
	"github.com/nicelyhorse/all-in-rag/internal/rag/biz"
	"github.com/nicelyhorse/all-in-rag/internal/rag/handler"
	"github.com/nicelyhorse/all-in-rag/internal/rag/metrics"
	"github.com/nicelyhorse/all-in-rag/internal/rag/router"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/infra/tracing"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/nicelyhorse/all-in-rag/pkg/llm/deepseek"
	_ "github.com/nicelyhorse/all-in-rag/pkg/llm/huggingface"
	_ "github.com/nicelyhorse/all-in-rag/pkg/llm/local"
	_ "github.com/nicelyhorse/all-in-rag/pkg/llm/ollama"
	_ "github.com/nicelyhorse/all-in-rag/pkg/llm/openai"
	"github.com/nicelyhorse/all-in-rag/pkg/llm/resilience"
	cacheopts "github.com/nicelyhorse/all-in-rag/pkg/options/cache"
	llmopts "github.com/nicelyhorse/all-in-rag/pkg/options/llm"
	logopts "github.com/nicelyhorse/all-in-rag/pkg/options/logger"
	ragopts "github.com/nicelyhorse/all-in-rag/pkg/options/rag"
	httpopts "github.com/nicelyhorse/all-in-rag/pkg/options/server/http"
	tracingopts "github.com/nicelyhorse/all-in-rag/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "all-in-rag"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *tracingopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	ShutdownTimeout  time.Duration

	// Question 非空时进入单次问答模式：构建索引、打印答案后退出。
	Question string
	// K 单次问答模式下检索的片段数，0 表示使用 rag.top-k。
	K int
	// Out 单次问答模式的输出，默认 os.Stdout。
	Out io.Writer
}

// Server represents the RAG server.
type Server struct {
	cfg     *Config
	service *biz.RAGService
	engine  *gin.Engine
	tracer  *tracing.Provider
	redis   goredis.UniversalClient
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", version.Get().GitVersion)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting RAG service...",
		"embedding", cfg.EmbeddingOptions.Provider,
		"chat", cfg.ChatOptions.Provider,
	)

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions, version.Get().GitVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	s := &Server{cfg: cfg, tracer: tp}

	// 3. 初始化 Redis 客户端（用于缓存），连接失败时关闭缓存继续运行
	if cfg.CacheOptions.Any() {
		client, err := cfg.CacheOptions.Redis.NewClient(ctx)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		} else {
			s.redis = client
			logger.Infow("Redis cache initialized", "redis", cfg.CacheOptions.Redis.String())
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 4. 初始化 LLM 供应商
	embedder, err := cfg.newEmbedder(s.redis)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	chat, err := cfg.newChat()
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	// 5. 初始化 Biz 层
	var queryCache *biz.QueryCache
	if s.redis != nil && cfg.CacheOptions.Enabled {
		queryCache = biz.NewQueryCache(s.redis, &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		})
	}
	ragMetrics := metrics.New("rag")
	s.service, err = biz.NewRAGService(
		embedder,
		biz.NewChatAnswerer(chat, biz.AnswererConfig{SystemPrompt: cfg.RAGOptions.SystemPrompt}),
		queryCache,
		ragMetrics,
		cfg.serviceConfig(),
	)
	if err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("failed to initialize rag service: %w", err)
	}
	logger.Infow("RAG service initialized",
		"embedder", llm.Identity(embedder),
		"cache.enabled", queryCache.Enabled(),
		"chunk_size", cfg.RAGOptions.ChunkSize,
		"chunk_overlap", cfg.RAGOptions.ChunkOverlap,
		"top_k", cfg.RAGOptions.TopK,
	)

	// 6. 初始化 Handler 与路由
	gin.SetMode(cfg.HTTPOptions.Mode)
	h := handler.NewRAGHandler(s.service, ragMetrics, cfg.RAGOptions.DataDir)
	s.engine = router.New(h, tp.TracerProvider())

	logger.Info("RAG service is ready")
	return s, nil
}

// newEmbedder 构建 Embedding 供应商：供应商 → 重试/熔断 → 归一化 → Redis 缓存。
func (cfg *Config) newEmbedder(redis goredis.UniversalClient) (llm.EmbeddingProvider, error) {
	o := cfg.EmbeddingOptions
	p, err := llm.NewEmbeddingProvider(o.Provider, o.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	var embedder llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(p, resilienceConfig(o))
	if o.Normalize {
		embedder = llm.NewNormalizingEmbeddingProvider(embedder)
	}
	if redis != nil && cfg.CacheOptions.EmbeddingEnabled {
		embedder = llm.NewCachedEmbeddingProvider(embedder, redis, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.EmbeddingTTL,
			KeyPrefix: "rag:emb:",
		})
	}

	logger.Infow("Embedding provider initialized",
		"provider", o.Provider,
		"identity", llm.Identity(embedder),
		"normalize", o.Normalize,
	)
	return embedder, nil
}

func (cfg *Config) newChat() (llm.ChatProvider, error) {
	o := cfg.ChatOptions
	p, err := llm.NewChatProvider(o.Provider, o.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized", "provider", o.Provider, "model", o.Model)
	return resilience.NewResilientChatProvider(p, resilienceConfig(o)), nil
}

func resilienceConfig(o *llmopts.ProviderOptions) *resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.Timeout = o.Timeout
	if o.MaxRetries > 0 {
		cfg.Retry.MaxAttempts = o.MaxRetries
	}
	return cfg
}

func (cfg *Config) serviceConfig() *biz.ServiceConfig {
	r := cfg.RAGOptions
	return &biz.ServiceConfig{
		Indexer: &biz.IndexerConfig{
			Splitter: textutil.SplitterConfig{
				ChunkSize:    r.ChunkSize,
				ChunkOverlap: r.ChunkOverlap,
			},
			EmbedBatchSize:   r.EmbedBatchSize,
			EmbedWorkers:     r.EmbedWorkers,
			RequireNonEmpty:  r.RequireNonEmpty,
			AssumeNormalized: cfg.EmbeddingOptions.Normalize,
			Extensions:       r.Extensions,
		},
		Retriever: &biz.RetrieverConfig{
			TopK:     r.TopK,
			MinScore: r.MinScore,
		},
		Generator:    &biz.GeneratorConfig{PromptTemplate: r.PromptTemplate},
		QueryTimeout: r.QueryTimeout,
	}
}

// Run indexes the data directory, then either answers the configured
// question once or serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.close(context.Background())

	if s.cfg.Question != "" {
		return s.answerOnce(ctx)
	}

	if dir := s.cfg.RAGOptions.DataDir; dir != "" {
		// 失败时服务仍然启动，可以通过 POST /v1/rag/index 重建索引
		_, err := s.service.IndexDirectory(ctx, dir)
		switch {
		case err == nil:
		case errors.IsCode(err, errors.ErrRAGDocumentNotFound.Code):
			logger.Warnw("data directory does not exist, serving without an index", "dir", dir)
		default:
			logger.Errorw("initial indexing failed, serving without an index", "dir", dir, "error", err.Error())
		}
	}

	srv := s.cfg.HTTPOptions.NewServer(s.engine)
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("Shutting down HTTP server", "timeout", s.cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) answerOnce(ctx context.Context) error {
	stats, err := s.service.IndexDirectory(ctx, s.cfg.RAGOptions.DataDir)
	if err != nil {
		return fmt.Errorf("index %s: %w", s.cfg.RAGOptions.DataDir, err)
	}
	logger.Infow("index built", "documents", stats.Documents, "passages", stats.Passages)

	result, err := s.service.Query(ctx, s.cfg.Question, s.cfg.K)
	if err != nil {
		return err
	}

	out := s.cfg.Out
	if out == nil {
		out = os.Stdout
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", result.Answer)
	if len(result.Sources) > 0 {
		b.WriteString("\n参考来源:\n")
		for _, src := range result.Sources {
			fmt.Fprintf(&b, "  [%d] %s (score %.4f)\n", src.Rank+1, sourceLabel(src.Title, src.Path, src.DocumentID), src.Score)
		}
	}
	_, err = io.WriteString(out, b.String())
	return err
}

func sourceLabel(title, path, id string) string {
	switch {
	case title != "" && path != "":
		return title + " - " + path
	case path != "":
		return path
	case title != "":
		return title
	}
	return id
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) close(ctx context.Context) {
	if s.service != nil {
		s.service.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			logger.Warnw("tracer shutdown failed", "error", err.Error())
		}
	}
}
