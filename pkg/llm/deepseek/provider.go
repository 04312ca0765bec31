// Package deepseek 提供 DeepSeek Chat 供应商实现。
// DeepSeek API 兼容 OpenAI 的 chat/completions 格式，不提供 Embedding。
package deepseek

import (
	"context"
	"time"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/httpclient"
)

// ProviderName 是 DeepSeek 供应商的名称标识符
const ProviderName = "deepseek"

func init() {
	llm.RegisterChatProvider(ProviderName, NewProvider)
}

// Config DeepSeek 供应商配置。
type Config struct {
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	APIKey      string        `json:"api_key" mapstructure:"api_key"`
	ChatModel   string        `json:"chat_model" mapstructure:"chat_model"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.deepseek.com",
		ChatModel:   "deepseek-chat",
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     120 * time.Second,
	}
}

// Provider DeepSeek 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 DeepSeek 供应商。
func NewProvider(m map[string]any) (llm.ChatProvider, error) {
	def := DefaultConfig()
	cfg := &Config{
		BaseURL:     llm.ConfigString(m, "base_url", def.BaseURL),
		APIKey:      llm.ConfigString(m, "api_key", ""),
		ChatModel:   llm.ConfigString(m, "chat_model", def.ChatModel),
		Temperature: llm.ConfigFloat(m, "temperature", def.Temperature),
		MaxTokens:   llm.ConfigInt(m, "max_tokens", def.MaxTokens),
		Timeout:     llm.ConfigDuration(m, "timeout", def.Timeout),
	}
	if cfg.APIKey == "" {
		return nil, errors.ErrLLMConfig.WithMessage("deepseek: api_key is required (DEEPSEEK_API_KEY)")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 DeepSeek 供应商。
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

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    messages,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.config.APIKey}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", llm.Wrap(ProviderName, "chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.Malformed(ProviderName, "chat", "response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return p.Chat(ctx, llm.PromptMessages(prompt, systemPrompt))
}

var _ llm.ChatProvider = (*Provider)(nil)
