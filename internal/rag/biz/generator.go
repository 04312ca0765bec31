package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

// ContextSeparator 拼接检索片段时使用的分隔符。
const ContextSeparator = "\n\n"

// RefusalAnswer 是默认模板要求模型在上下文不足时给出的固定回答。
const RefusalAnswer = "抱歉，我无法根据提供的上下文找到相关信息来回答此问题。"

// DefaultPromptTemplate 默认提示词模板，包含 {context} 和 {question} 占位符。
const DefaultPromptTemplate = `请根据下面提供的上下文信息来回答问题。
请确保你的回答完全基于这些上下文。
如果上下文中没有足够的信息来回答问题，请直接告知：“` + RefusalAnswer + `”

上下文:
{context}

问题: {question}

回答:`

// AssembleContext 按输入顺序拼接片段文本，不去重、不重排、不截断。
func AssembleContext(passages []model.Passage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, ContextSeparator)
}

// FillPrompt 一次性替换模板中的 {context} 与 {question}。
// 替换结果不会被再次扫描，上下文中出现的占位符原样保留。
func FillPrompt(template, context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(template)
}

// ValidatePromptTemplate 检查模板是否包含两个占位符。
func ValidatePromptTemplate(template string) error {
	for _, ph := range []string{"{context}", "{question}"} {
		if !strings.Contains(template, ph) {
			return errors.ErrRAGInvalidConfig.WithMessagef("prompt template is missing %s", ph)
		}
	}
	return nil
}

// Answerer 根据模板、上下文和问题生成自然语言回答。
// 上下文可能为空，此时由模板决定模型如何回应。
type Answerer interface {
	Answer(ctx context.Context, promptTemplate, context, question string) (string, error)
}

// AnswererConfig ChatAnswerer 配置。
type AnswererConfig struct {
	// SystemPrompt 可选的系统提示词。
	SystemPrompt string
}

// ChatAnswerer 把 llm.ChatProvider 适配为 Answerer。
type ChatAnswerer struct {
	provider llm.ChatProvider
	config   AnswererConfig
}

// NewChatAnswerer 创建基于对话模型的 Answerer。
func NewChatAnswerer(provider llm.ChatProvider, config AnswererConfig) *ChatAnswerer {
	return &ChatAnswerer{provider: provider, config: config}
}

// Answer 填充模板后调用对话模型。
func (a *ChatAnswerer) Answer(ctx context.Context, promptTemplate, context, question string) (string, error) {
	prompt := FillPrompt(promptTemplate, context, question)
	answer, err := a.provider.Generate(ctx, prompt, a.config.SystemPrompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// PromptTemplate 为空时使用 DefaultPromptTemplate。
	PromptTemplate string
}

// Generator 负责答案生成。
type Generator struct {
	answerer Answerer
	template string
}

// NewGenerator 创建生成器实例，模板缺少占位符时返回 ErrRAGInvalidConfig。
func NewGenerator(answerer Answerer, config *GeneratorConfig) (*Generator, error) {
	template := DefaultPromptTemplate
	if config != nil && config.PromptTemplate != "" {
		template = config.PromptTemplate
	}
	if err := ValidatePromptTemplate(template); err != nil {
		return nil, err
	}
	return &Generator{answerer: answerer, template: template}, nil
}

// PromptTemplate 返回生效的提示词模板。
func (g *Generator) PromptTemplate() string {
	return g.template
}

// Generate 调用 Answerer。上下文为空时仍会调用，由模板引导模型拒答。
func (g *Generator) Generate(ctx context.Context, contextText, question string) (string, error) {
	if contextText == "" {
		logger.Debugw("answering with empty context", "question", question)
	}
	answer, err := g.answerer.Answer(ctx, g.template, contextText, question)
	if err != nil {
		logger.Warnw("answer generation failed",
			"question", question,
			"kind", llm.Classify(err).String(),
			"error", err.Error(),
		)
		return "", err
	}
	logger.Debugw("answer generated", "answer_length", len(answer))
	return answer, nil
}
