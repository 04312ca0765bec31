package biz

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

// fakeEmbedder 按函数生成向量，可注入错误与延迟。
type fakeEmbedder struct {
	model string
	fn    func(text string) []float32
	err   error
	// short 为 true 时每批少返回一个向量。
	short bool
	calls atomic.Int32
}

func (f *fakeEmbedder) Name() string           { return "fake" }
func (f *fakeEmbedder) EmbeddingModel() string { return f.model }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.fn(t))
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

// keywordEmbedder 每个关键词一维，值为出现次数。
func keywordEmbedder(keywords ...string) *fakeEmbedder {
	return &fakeEmbedder{
		model: "keywords",
		fn: func(text string) []float32 {
			v := make([]float32, len(keywords))
			for i, kw := range keywords {
				v[i] = float32(strings.Count(text, kw))
			}
			return v
		},
	}
}

// fixedEmbedder 按文本查表。
func fixedEmbedder(table map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{
		model: "fixed",
		fn:    func(text string) []float32 { return table[text] },
	}
}

type answerCall struct {
	template, context, question string
}

// recordingAnswerer 记录每次调用。
type recordingAnswerer struct {
	mu     sync.Mutex
	calls  []answerCall
	answer string
	err    error
	delay  time.Duration
}

func (r *recordingAnswerer) Answer(ctx context.Context, template, contextText, question string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, answerCall{template, contextText, question})
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return "", llm.Wrap("fake", "chat", ctx.Err())
		}
	}
	if r.err != nil {
		return "", r.err
	}
	if r.answer != "" {
		return r.answer, nil
	}
	return "answer to " + question, nil
}

func (r *recordingAnswerer) Calls() []answerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]answerCall(nil), r.calls...)
}

// fakeChat 实现 llm.ChatProvider。
type fakeChat struct {
	prompt, system string
	reply          string
	err            error
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return f.reply, f.err
}

func (f *fakeChat) Generate(ctx context.Context, prompt, system string) (string, error) {
	f.prompt, f.system = prompt, system
	return f.reply, f.err
}
