package openai

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

const testAPIKey = "test-key"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL + "/v1"
	cfg.APIKey = testAPIKey
	return NewProviderWithConfig(cfg)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{"valid config", map[string]any{"api_key": testAPIKey}, false},
		{"custom config", map[string]any{
			"api_key":      testAPIKey,
			"embed_model":  "text-embedding-3-large",
			"chat_model":   "gpt-4o",
			"organization": "org-123",
			"dimensions":   256,
		}, false},
		{"missing api_key", map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, provider.Name())
		})
	}

	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"api_key": testAPIKey, "embed_model": "m"})
	require.NoError(t, err)
	assert.Equal(t, "openai:m", llm.Identity(p))
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		assert.Equal(t, "text-embedding-3-small", req.Model)

		// 乱序返回，按 index 重排
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	})

	vectors, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	empty, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEmbed_CountMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	})

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.Equal(t, llm.FailureMalformedResponse, llm.Classify(err))
}

func TestChat(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[
			{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}
		]}`))
	})

	answer, err := p.Generate(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "hi", answer)
}

func TestFailureClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.FailureKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests"}}`, llm.FailureTransient},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"oops","type":"server_error"}}`, llm.FailureTransient},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, llm.FailurePermanent},
		{"no choices", http.StatusOK, `{"choices":[]}`, llm.FailureMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.Chat(context.Background(), llm.PromptMessages("q", ""))
			require.Error(t, err)
			assert.Equal(t, tt.want, llm.Classify(err))
		})
	}
}
