package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

// Config 汇总一个被包装供应商的韧性策略。
type Config struct {
	Retry          *RetryConfig
	CircuitBreaker *CircuitBreakerConfig
	// Timeout 单次调用的超时时间，0 表示不限制（仍受调用方 ctx 约束）。
	Timeout time.Duration
}

// DefaultConfig 返回默认韧性配置。
func DefaultConfig() *Config {
	return &Config{
		Retry:          DefaultRetryConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Timeout:        60 * time.Second,
	}
}

type guard struct {
	name    string
	retry   *RetryConfig
	cb      *CircuitBreaker
	timeout time.Duration
}

func newGuard(name string, cfg *Config) guard {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return guard{
		name:    name,
		retry:   retry,
		cb:      NewCircuitBreaker(cfg.CircuitBreaker),
		timeout: cfg.Timeout,
	}
}

// do 执行 call：每次尝试都有独立的超时，错误统一包装为 *llm.ProviderError。
func (g guard) do(ctx context.Context, op string, call func(ctx context.Context) error) error {
	err := RetryWithBackoff(ctx, g.retry, func() error {
		return g.cb.Execute(func() error {
			actx := ctx
			if g.timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			return llm.Wrap(g.name, op, call(actx))
		})
	})
	if stderrors.Is(err, ErrCircuitBreakerOpen) {
		return llm.NewProviderError(g.name, op, llm.FailureTransient, err)
	}
	return err
}

// ResilientEmbeddingProvider 带重试、熔断与超时的 Embedding Provider。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	guard
}

// NewResilientEmbeddingProvider 创建带韧性功能的 Embedding Provider。
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, cfg *Config) *ResilientEmbeddingProvider {
	return &ResilientEmbeddingProvider{provider: provider, guard: newGuard(provider.Name(), cfg)}
}

// Embed 为多个文本生成向量嵌入，并校验返回条数。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := r.do(ctx, "embed", func(ctx context.Context) error {
		var err error
		result, err = r.provider.Embed(ctx, texts)
		if err != nil {
			return err
		}
		return llm.CheckBatch(r.name, result, len(texts))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := r.do(ctx, "embed", func(ctx context.Context) error {
		var err error
		result, err = r.provider.EmbedSingle(ctx, text)
		if err == nil && len(result) == 0 {
			return llm.Malformed(r.name, "embed", "empty embedding")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Name 返回供应商名称。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// Unwrap 返回底层供应商。
func (r *ResilientEmbeddingProvider) Unwrap() llm.EmbeddingProvider {
	return r.provider
}

// CircuitBreaker 返回熔断器（用于监控）。
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// ResilientChatProvider 带重试、熔断与超时的 Chat Provider。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	guard
}

// NewResilientChatProvider 创建带韧性功能的 Chat Provider。
func NewResilientChatProvider(provider llm.ChatProvider, cfg *Config) *ResilientChatProvider {
	return &ResilientChatProvider{provider: provider, guard: newGuard(provider.Name(), cfg)}
}

// Chat 进行多轮对话。
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var result string
	err := r.do(ctx, "chat", func(ctx context.Context) error {
		var err error
		result, err = r.provider.Chat(ctx, messages)
		return err
	})
	return result, err
}

// Generate 根据提示生成文本。
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	var result string
	err := r.do(ctx, "generate", func(ctx context.Context) error {
		var err error
		result, err = r.provider.Generate(ctx, prompt, systemPrompt)
		return err
	})
	return result, err
}

// Name 返回供应商名称。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker 返回熔断器（用于监控）。
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

var (
	_ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ResilientChatProvider)(nil)
)
