package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/json"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	return NewProviderWithConfig(cfg)
}

func TestNewProvider(t *testing.T) {
	p, err := llm.NewProvider(ProviderName, map[string]any{"embed_model": "bge-m3"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:bge-m3", llm.Identity(p))
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		out := embedResponse{Model: req.Model}
		for i := range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	vectors, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vectors)

	v, err := p.EmbedSingle(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, v)
}

func TestEmbed_Malformed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	})
	_, err := p.Embed(context.Background(), []string{"a"})
	assert.Equal(t, llm.FailureMalformedResponse, llm.Classify(err))
}

func TestChat(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, 4096, req.Options.NumPredict)
		_, _ = w.Write([]byte(`{"model":"qwen2.5:7b","message":{"role":"assistant","content":"好的"},"done":true}`))
	})

	answer, err := p.Generate(context.Background(), "你好", "系统")
	require.NoError(t, err)
	assert.Equal(t, "好的", answer)
}

func TestChat_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	server.Close()

	_, err := NewProviderWithConfig(cfg).Chat(context.Background(), llm.PromptMessages("q", ""))
	require.Error(t, err)
	assert.Equal(t, llm.FailureTransient, llm.Classify(err))
}
