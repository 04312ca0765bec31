// Package openai 提供基于 go-openai 的 OpenAI 供应商实现，同时支持兼容
// OpenAI API 的服务（Azure OpenAI、LocalAI、vLLM 等，通过 base_url 指定）。
//
//	provider, err := llm.NewProvider("openai", map[string]any{
//	    "api_key":     "sk-...",
//	    "embed_model": "text-embedding-3-small",
//	    "chat_model":  "gpt-4o-mini",
//	})
package openai

import (
	"context"
	stderrors "errors"
	"net/http"
	"sort"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/httpclient"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	BaseURL      string        `json:"base_url" mapstructure:"base_url"`
	APIKey       string        `json:"api_key" mapstructure:"api_key"`
	Organization string        `json:"organization" mapstructure:"organization"`
	EmbedModel   string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel    string        `json:"chat_model" mapstructure:"chat_model"`
	// Dimensions 指定 text-embedding-3 系列的输出维度，0 表示模型默认值。
	Dimensions  int           `json:"dimensions" mapstructure:"dimensions"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		EmbedModel:  "text-embedding-3-small",
		ChatModel:   "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     120 * time.Second,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *goopenai.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(m map[string]any) (llm.Provider, error) {
	def := DefaultConfig()
	cfg := &Config{
		BaseURL:      llm.ConfigString(m, "base_url", def.BaseURL),
		APIKey:       llm.ConfigString(m, "api_key", ""),
		Organization: llm.ConfigString(m, "organization", ""),
		EmbedModel:   llm.ConfigString(m, "embed_model", def.EmbedModel),
		ChatModel:    llm.ConfigString(m, "chat_model", def.ChatModel),
		Dimensions:   llm.ConfigInt(m, "dimensions", 0),
		Temperature:  llm.ConfigFloat(m, "temperature", def.Temperature),
		MaxTokens:    llm.ConfigInt(m, "max_tokens", def.MaxTokens),
		Timeout:      llm.ConfigDuration(m, "timeout", def.Timeout),
	}
	if cfg.APIKey == "" {
		return nil, errors.ErrLLMConfig.WithMessage("openai: api_key is required (OPENAI_API_KEY)")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.OrgID = cfg.Organization
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Provider{
		config: cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
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

// Embed 为多个文本生成向量嵌入，结果按输入顺序返回。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(p.config.EmbedModel),
		Dimensions: p.config.Dimensions,
	})
	if err != nil {
		return nil, classify("embed", err)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		vectors[i] = v
	}
	if err := llm.CheckBatch(ProviderName, vectors, len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Messages:    msgs,
		Temperature: float32(p.config.Temperature),
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return "", classify("chat", err)
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

// classify 将 go-openai 的错误映射为失败类型。
func classify(op string, err error) error {
	var apiErr *goopenai.APIError
	if stderrors.As(err, &apiErr) {
		return llm.NewProviderError(ProviderName, op, kindForStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *goopenai.RequestError
	if stderrors.As(err, &reqErr) {
		return llm.NewProviderError(ProviderName, op, kindForStatus(reqErr.HTTPStatusCode), err)
	}
	return llm.Wrap(ProviderName, op, err)
}

func kindForStatus(code int) llm.FailureKind {
	if code == 0 {
		return llm.FailureTransient
	}
	if httpclient.RetryableStatus(code) {
		return llm.FailureTransient
	}
	return llm.FailurePermanent
}

var _ llm.Provider = (*Provider)(nil)
