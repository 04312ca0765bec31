package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/internal/pkg/rag/textutil"
	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"latin words", "Hello, World 42!", []string{"hello", "world", "42"}},
		{"cjk bigrams", "红烧肉", []string{"红", "烧", "红烧", "肉", "烧肉"}},
		{"mixed", "做red烧", []string{"做", "red", "烧"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestEmbed(t *testing.T) {
	p, err := New(64)
	require.NoError(t, err)

	ctx := context.Background()
	vectors, err := p.Embed(ctx, []string{"红烧肉怎么做", "红烧肉怎么做", "weather today", ""})
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	for _, v := range vectors {
		assert.Len(t, v, 64)
	}
	assert.Equal(t, vectors[0], vectors[1])
	assert.InDelta(t, 1.0, textutil.Norm(vectors[0]), 1e-5)
	assert.Zero(t, textutil.Norm(vectors[3]))

	single, err := p.EmbedSingle(ctx, "红烧肉怎么做")
	require.NoError(t, err)
	assert.Equal(t, vectors[0], single)
}

func TestEmbed_Similarity(t *testing.T) {
	p, err := New(DefaultDimension)
	require.NoError(t, err)

	ctx := context.Background()
	q, _ := p.EmbedSingle(ctx, "红烧肉的做法")
	near, _ := p.EmbedSingle(ctx, "红烧肉需要五花肉和冰糖")
	far, _ := p.EmbedSingle(ctx, "the quick brown fox")

	// 向量已归一化，点积即余弦相似度
	assert.Greater(t, textutil.Dot(q, near), textutil.Dot(q, far))
}

func TestEmbed_Canceled(t *testing.T) {
	p, err := New(8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Embed(ctx, []string{"a"})
	require.Error(t, err)
	assert.Equal(t, llm.FailurePermanent, llm.Classify(err))
}

func TestNewProvider(t *testing.T) {
	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"dimension": 32})
	require.NoError(t, err)
	assert.Equal(t, "local:hashing-32", llm.Identity(p))

	_, err = New(0)
	assert.Error(t, err)
}
