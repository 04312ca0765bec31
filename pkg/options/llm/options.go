// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/nicelyhorse/all-in-rag/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（deepseek, openai, ollama, huggingface, local）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// APIKeyEnv 在 APIKey 为空时读取的环境变量。
	APIKeyEnv string `json:"api-key-env" mapstructure:"api-key-env"`

	// Model 使用的模型名称，为空时使用供应商默认值。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 瞬时失败的最大尝试次数（包括首次调用）。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 采样温度（Chat）。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成长度（Chat）。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Dimension 向量维度（local 供应商，或支持降维的 OpenAI 模型）。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Normalize 对 Embedding 做 L2 归一化，检索时按点积计算。
	Normalize bool `json:"normalize" mapstructure:"normalize"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "huggingface",
		Model:      "BAAI/bge-small-zh-v1.5",
		APIKeyEnv:  "HF_TOKEN",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		Normalize:  true,
	}
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "deepseek",
		Model:       "deepseek-chat",
		APIKeyEnv:   "DEEPSEEK_API_KEY",
		Timeout:     120 * time.Second,
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"organization": o.Organization,
		"temperature":  o.Temperature,
		"max_tokens":   o.MaxTokens,
		"dimension":    o.Dimension,
		"dimensions":   o.Dimension,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (deepseek, openai, ollama, huggingface, local).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "API base URL (empty for the provider default).")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key (prefer the api-key-env variable).")
	fs.StringVar(&o.APIKeyEnv, p+"api-key-env", o.APIKeyEnv, "Environment variable holding the API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name (empty for the provider default).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per-request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Attempts for transient failures, including the first.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (OpenAI, optional).")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum number of generated tokens.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension (local provider, OpenAI v3 models).")
	fs.BoolVar(&o.Normalize, p+"normalize", o.Normalize, "L2-normalise embeddings.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must not be negative"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be in [0, 2]"))
	}
	if o.Dimension < 0 {
		errs = append(errs, fmt.Errorf("dimension must not be negative"))
	}
	return errs
}

// Complete resolves APIKey from APIKeyEnv and fills retry defaults.
func (o *ProviderOptions) Complete(getenv func(string) string) error {
	if o.APIKey == "" && o.APIKeyEnv != "" && getenv != nil {
		o.APIKey = getenv(o.APIKeyEnv)
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 1
	}
	return nil
}
