package rag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr int
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "zero chunk size", mutate: func(o *Options) { o.ChunkSize = 0 }, wantErr: 2},
		{name: "negative overlap", mutate: func(o *Options) { o.ChunkOverlap = -1 }, wantErr: 1},
		{name: "min score out of range", mutate: func(o *Options) { o.MinScore = 1.5 }, wantErr: 1},
		{name: "workers and batch", mutate: func(o *Options) { o.EmbedWorkers = 0; o.EmbedBatchSize = 0 }, wantErr: 2},
		{name: "template with placeholders", mutate: func(o *Options) { o.PromptTemplate = "{context}\n{question}" }},
		{name: "template without context", mutate: func(o *Options) { o.PromptTemplate = "{question}" }, wantErr: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.wantErr)
		})
	}
}

func TestOptions_CompleteReadsPromptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("上下文：{context}\n问题：{question}"), 0o600))

	o := NewOptions()
	o.PromptFile = path
	require.NoError(t, o.Complete())
	assert.Equal(t, "上下文：{context}\n问题：{question}", o.PromptTemplate)
	assert.Empty(t, o.Validate())

	o.PromptFile = filepath.Join(t.TempDir(), "missing.txt")
	assert.Error(t, o.Complete())
}
