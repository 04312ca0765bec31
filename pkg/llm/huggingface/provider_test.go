package huggingface

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "hf_test"
	return NewProviderWithConfig(cfg)
}

func TestEmbed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want [][]float32
	}{
		{
			name: "sentence embeddings",
			body: `[[1,0],[0,1]]`,
			want: [][]float32{{1, 0}, {0, 1}},
		},
		{
			name: "token embeddings are mean pooled",
			body: `[[[1,0],[3,2]],[[2,2]]]`,
			want: [][]float32{{2, 1}, {2, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/pipeline/feature-extraction/BAAI/bge-small-zh-v1.5", r.URL.Path)
				assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := p.Embed(context.Background(), []string{"a", "b"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.FailureKind
	}{
		{"model loading", http.StatusServiceUnavailable, `{"error":"loading"}`, llm.FailureTransient},
		{"bad token", http.StatusUnauthorized, `{"error":"unauthorized"}`, llm.FailurePermanent},
		{"not an array", http.StatusOK, `{"error":"oops"}`, llm.FailureMalformedResponse},
		{"wrong count", http.StatusOK, `[[1,2]]`, llm.FailureMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.Embed(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			assert.Equal(t, tt.want, llm.Classify(err))
		})
	}
}

func TestChat(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/mistralai/Mistral-7B-Instruct-v0.2", r.URL.Path)
		_, _ = w.Write([]byte(`[{"generated_text":"  回答  "}]`))
	})

	answer, err := p.Generate(context.Background(), "问题", "系统")
	require.NoError(t, err)
	assert.Equal(t, "回答", answer)
}

func TestFormatMessages(t *testing.T) {
	got := formatMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "s"},
		{Role: llm.RoleUser, Content: "u"},
		{Role: llm.RoleAssistant, Content: "a"},
	})
	assert.Equal(t, "[INST] s [/INST]\n[INST] u [/INST]\na\n", got)
}

func TestIdentity(t *testing.T) {
	p, err := llm.NewEmbeddingProvider(ProviderName, nil)
	require.NoError(t, err)
	assert.Equal(t, "huggingface:BAAI/bge-small-zh-v1.5", llm.Identity(p))
}
