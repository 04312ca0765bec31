package llm

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *ProviderOptions)
		wantErr int
	}{
		{name: "embedding defaults", mutate: func(*ProviderOptions) {}},
		{name: "empty provider", mutate: func(o *ProviderOptions) { o.Provider = "" }, wantErr: 1},
		{name: "zero timeout", mutate: func(o *ProviderOptions) { o.Timeout = 0 }, wantErr: 1},
		{name: "temperature and dimension", mutate: func(o *ProviderOptions) { o.Temperature = 3; o.Dimension = -1 }, wantErr: 2},
		{name: "negative retries", mutate: func(o *ProviderOptions) { o.MaxRetries = -1 }, wantErr: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewEmbeddingOptions()
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.wantErr)
		})
	}
}

func TestProviderOptions_AddFlags(t *testing.T) {
	emb, chat := NewEmbeddingOptions(), NewChatOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	emb.AddFlags(fs, "embedding")
	chat.AddFlags(fs, "chat")

	require.NoError(t, fs.Parse([]string{
		"--embedding.provider=local",
		"--embedding.dimension=64",
		"--chat.model=deepseek-reasoner",
		"--chat.timeout=30s",
	}))

	assert.Equal(t, "local", emb.Provider)
	assert.Equal(t, 64, emb.Dimension)
	assert.Equal(t, "deepseek-reasoner", chat.Model)
	assert.Equal(t, 30*time.Second, chat.Timeout)
	assert.Equal(t, "deepseek", chat.Provider)
}

func TestProviderOptions_Complete(t *testing.T) {
	env := map[string]string{"DEEPSEEK_API_KEY": "sk-env"}
	getenv := func(k string) string { return env[k] }

	t.Run("key from env", func(t *testing.T) {
		o := NewChatOptions()
		require.NoError(t, o.Complete(getenv))
		assert.Equal(t, "sk-env", o.APIKey)
	})

	t.Run("explicit key wins", func(t *testing.T) {
		o := NewChatOptions()
		o.APIKey = "sk-flag"
		require.NoError(t, o.Complete(getenv))
		assert.Equal(t, "sk-flag", o.APIKey)
	})

	t.Run("zero retries means one attempt", func(t *testing.T) {
		o := NewChatOptions()
		o.MaxRetries = 0
		require.NoError(t, o.Complete(nil))
		assert.Equal(t, 1, o.MaxRetries)
	})
}

func TestProviderOptions_ToConfigMap(t *testing.T) {
	o := NewChatOptions()
	o.BaseURL = "http://localhost:11434"
	m := o.ToConfigMap()

	assert.Equal(t, "http://localhost:11434", m["base_url"])
	assert.Equal(t, "deepseek-chat", m["chat_model"])
	assert.Equal(t, 4096, m["max_tokens"])
	assert.Equal(t, 120*time.Second, m["timeout"])
}
