// Package llm 提供统一的模型供应商抽象层。
// Embedding 与 Chat 可以使用不同供应商的模型；所有供应商错误都归类为
// FailureKind 之一（见 failure.go）。
package llm

import (
	"context"
	"sort"
	"sync"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
// Embed 返回的向量与 texts 一一对应且顺序一致。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// EmbeddingModeler 由能报告所用 Embedding 模型的供应商实现。
type EmbeddingModeler interface {
	EmbeddingModel() string
}

// Wrapper 由包装其他 Embedding 供应商的装饰器实现。
type Wrapper interface {
	Unwrap() EmbeddingProvider
}

// IdentityTagger 由会改变向量内容的装饰器实现，标记追加在身份标识之后。
type IdentityTagger interface {
	IdentityTag() string
}

// Identity 返回 Embedding 供应商的身份标识 "name:model[:tag...]"，用于判断
// 索引与查询是否使用同一个模型。装饰器会被逐层剥离，只保留改变向量内容的
// 装饰器标记（如归一化的 "l2"），标记按由外到内的顺序排列。
func Identity(p EmbeddingProvider) string {
	var tags []string
	for {
		if t, ok := p.(IdentityTagger); ok && t.IdentityTag() != "" {
			tags = append(tags, t.IdentityTag())
		}
		w, ok := p.(Wrapper)
		if !ok {
			break
		}
		p = w.Unwrap()
	}

	id := p.Name()
	if m, ok := p.(EmbeddingModeler); ok && m.EmbeddingModel() != "" {
		id += ":" + m.EmbeddingModel()
	}
	for _, tag := range tags {
		id += ":" + tag
	}
	return id
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// ChatProviderFactory Chat 供应商工厂函数类型。
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

var registry = &providerRegistry{
	providers:          make(map[string]ProviderFactory),
	embeddingProviders: make(map[string]EmbeddingProviderFactory),
	chatProviders:      make(map[string]ChatProviderFactory),
}

type providerRegistry struct {
	mu                 sync.RWMutex
	providers          map[string]ProviderFactory
	embeddingProviders map[string]EmbeddingProviderFactory
	chatProviders      map[string]ChatProviderFactory
}

// RegisterProvider 注册完整供应商工厂。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// RegisterChatProvider 注册 Chat 供应商工厂。
func RegisterChatProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chatProviders[name] = factory
}

// NewProvider 根据名称创建完整供应商实例。
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, errors.ErrLLMConfig.WithMessagef("unknown provider: %s", name)
	}
	return factory(config)
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
// 优先查找专用 Embedding 工厂，其次查找完整供应商工厂。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.embeddingProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}
	if _, ok := registry.chatProviders[name]; ok {
		return nil, errors.ErrLLMUnsupported.WithMessagef("provider %s does not support embeddings", name)
	}
	return nil, errors.ErrLLMConfig.WithMessagef("unknown embedding provider: %s", name)
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
// 优先查找专用 Chat 工厂，其次查找完整供应商工厂。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.chatProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}
	if _, ok := registry.embeddingProviders[name]; ok {
		return nil, errors.ErrLLMUnsupported.WithMessagef("provider %s does not support chat", name)
	}
	return nil, errors.ErrLLMConfig.WithMessagef("unknown chat provider: %s", name)
}

// ListProviders 按名称排序列出所有已注册的供应商。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.providers {
		add(name)
	}
	for name := range registry.embeddingProviders {
		add(name)
	}
	for name := range registry.chatProviders {
		add(name)
	}
	sort.Strings(names)
	return names
}
