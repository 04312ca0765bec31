// Package ollama 提供本地 Ollama 服务的供应商实现。
package ollama

import (
	"context"
	"time"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/httpclient"
)

// ProviderName 是 Ollama 供应商的名称标识符
const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel  string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel   string        `json:"chat_model" mapstructure:"chat_model"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:11434",
		EmbedModel:  "nomic-embed-text",
		ChatModel:   "qwen2.5:7b",
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     120 * time.Second,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Ollama 供应商。Ollama 不需要 API Key。
func NewProvider(m map[string]any) (llm.Provider, error) {
	def := DefaultConfig()
	return NewProviderWithConfig(&Config{
		BaseURL:     llm.ConfigString(m, "base_url", def.BaseURL),
		EmbedModel:  llm.ConfigString(m, "embed_model", def.EmbedModel),
		ChatModel:   llm.ConfigString(m, "chat_model", def.ChatModel),
		Temperature: llm.ConfigFloat(m, "temperature", def.Temperature),
		MaxTokens:   llm.ConfigInt(m, "max_tokens", def.MaxTokens),
		Timeout:     llm.ConfigDuration(m, "timeout", def.Timeout),
	}), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, 0),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// EmbeddingModel 返回 Embedding 模型名称。
func (p *Provider) EmbeddingModel() string {
	return p.config.EmbedModel
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 通过 /api/embed 批量生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp embedResponse
	req := embedRequest{Model: p.config.EmbedModel, Input: texts}
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/embed", nil, req, &resp); err != nil {
		return nil, llm.Wrap(ProviderName, "embed", err)
	}
	if err := llm.CheckBatch(ProviderName, resp.Embeddings, len(texts)); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
}

// Chat 通过 /api/chat 进行多轮对话（非流式）。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req := chatRequest{
		Model:    p.config.ChatModel,
		Messages: messages,
		Options: chatOptions{
			Temperature: p.config.Temperature,
			NumPredict:  p.config.MaxTokens,
		},
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", llm.Wrap(ProviderName, "chat", err)
	}
	if !resp.Done {
		return "", llm.Malformed(ProviderName, "chat", "response not marked done")
	}
	return resp.Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return p.Chat(ctx, llm.PromptMessages(prompt, systemPrompt))
}

var _ llm.Provider = (*Provider)(nil)
