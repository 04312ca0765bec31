// Package huggingface 提供 HuggingFace Inference API 供应商实现。
// Embedding 使用 feature-extraction 管道，Chat 使用 text-generation。
// BaseURL 可以指向自建的 text-embeddings-inference 服务。
package huggingface

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/httpclient"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey HuggingFace API Token，自建服务可以留空。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string `json:"chat_model" mapstructure:"chat_model"`

	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`

	// WaitForModel 模型冷启动时是否等待加载完成。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		EmbedModel:   "BAAI/bge-small-zh-v1.5",
		ChatModel:    "mistralai/Mistral-7B-Instruct-v0.2",
		Temperature:  0.7,
		MaxTokens:    1024,
		Timeout:      120 * time.Second,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(m map[string]any) (llm.Provider, error) {
	def := DefaultConfig()
	return NewProviderWithConfig(&Config{
		BaseURL:      llm.ConfigString(m, "base_url", def.BaseURL),
		APIKey:       llm.ConfigString(m, "api_key", ""),
		EmbedModel:   llm.ConfigString(m, "embed_model", def.EmbedModel),
		ChatModel:    llm.ConfigString(m, "chat_model", def.ChatModel),
		Temperature:  llm.ConfigFloat(m, "temperature", def.Temperature),
		MaxTokens:    llm.ConfigInt(m, "max_tokens", def.MaxTokens),
		Timeout:      llm.ConfigDuration(m, "timeout", def.Timeout),
		WaitForModel: llm.ConfigBool(m, "wait_for_model", def.WaitForModel),
	}), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
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

// EmbeddingModel 返回 Embedding 模型 ID。
func (p *Provider) EmbeddingModel() string {
	return p.config.EmbedModel
}

type options struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

type embeddingRequest struct {
	Inputs  []string `json:"inputs"`
	Options *options `json:"options,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingRequest{Inputs: texts, Options: p.options()}
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)

	var raw stdjson.RawMessage
	if err := p.client.PostJSON(ctx, url, p.headers(), req, &raw); err != nil {
		return nil, llm.Wrap(ProviderName, "embed", err)
	}

	vectors, err := decodeEmbeddings(raw)
	if err != nil {
		return nil, llm.Malformed(ProviderName, "embed", "decode feature-extraction output: %v", err)
	}
	if err := llm.CheckBatch(ProviderName, vectors, len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// decodeEmbeddings 接受句向量 [][]float32，或 token 级向量 [][][]float32
// （按 token 取平均）。
func decodeEmbeddings(raw []byte) ([][]float32, error) {
	var vectors [][]float32
	err := json.Unmarshal(raw, &vectors)
	if err == nil {
		return vectors, nil
	}

	var tokens [][][]float32
	if err2 := json.Unmarshal(raw, &tokens); err2 != nil {
		return nil, err
	}
	vectors = make([][]float32, len(tokens))
	for i, tok := range tokens {
		vectors[i] = meanPool(tok)
	}
	return vectors, nil
}

func meanPool(tokens [][]float32) []float32 {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]float32, len(tokens[0]))
	for _, t := range tokens {
		for j := 0; j < len(out) && j < len(t); j++ {
			out[j] += t[j]
		}
	}
	for j := range out {
		out[j] /= float32(len(tokens))
	}
	return out
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type generationRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters generationParams `json:"parameters"`
	Options    *options         `json:"options,omitempty"`
}

type generationParams struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generationResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Chat 把消息格式化为 [INST] 模板后生成回答。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req := generationRequest{
		Inputs: formatMessages(messages),
		Parameters: generationParams{
			MaxNewTokens: p.config.MaxTokens,
			Temperature:  p.config.Temperature,
		},
		Options: p.options(),
	}

	var resp []generationResponse
	url := fmt.Sprintf("%s/models/%s", p.config.BaseURL, p.config.ChatModel)
	if err := p.client.PostJSON(ctx, url, p.headers(), req, &resp); err != nil {
		return "", llm.Wrap(ProviderName, "chat", err)
	}
	if len(resp) == 0 {
		return "", llm.Malformed(ProviderName, "chat", "empty generation output")
	}
	return strings.TrimSpace(resp[0].GeneratedText), nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return p.Chat(ctx, llm.PromptMessages(prompt, systemPrompt))
}

// formatMessages 将消息格式化为 Mistral 对话模板。
func formatMessages(messages []llm.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser:
			fmt.Fprintf(&b, "[INST] %s [/INST]\n", msg.Content)
		case llm.RoleAssistant:
			b.WriteString(msg.Content)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (p *Provider) options() *options {
	if !p.config.WaitForModel {
		return nil
	}
	return &options{WaitForModel: true}
}

func (p *Provider) headers() map[string]string {
	if p.config.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.config.APIKey}
}

var _ llm.Provider = (*Provider)(nil)
