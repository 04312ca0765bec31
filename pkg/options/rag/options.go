// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nicelyhorse/all-in-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains RAG-specific configuration.
type Options struct {
	// DataDir is the document directory indexed at startup and by default reindex calls.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// Extensions lists the file extensions loaded from DataDir.
	Extensions []string `json:"extensions" mapstructure:"extensions"`

	// ChunkSize is the maximum passage size in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the number of characters shared by neighbouring passages.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is used when a query does not specify k.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore drops passages scoring below it; 0 disables the filter.
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// PromptTemplate overrides the built-in template. It must contain
	// {context} and {question}.
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template"`

	// PromptFile loads PromptTemplate from a file.
	PromptFile string `json:"prompt-file" mapstructure:"prompt-file"`

	// SystemPrompt is sent as the chat system message.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// EmbedBatchSize is the number of passages per embedding call while indexing.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// EmbedWorkers is the number of concurrent embedding calls while indexing.
	EmbedWorkers int `json:"embed-workers" mapstructure:"embed-workers"`

	// RequireNonEmpty fails indexing when the corpus yields no passages.
	RequireNonEmpty bool `json:"require-non-empty" mapstructure:"require-non-empty"`

	// QueryTimeout bounds one query end to end; 0 disables it.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		DataDir:        "./data",
		Extensions:     []string{".md", ".mdx", ".txt", ".pdf"},
		ChunkSize:      1000,
		ChunkOverlap:   200,
		TopK:           6,
		EmbedBatchSize: 32,
		EmbedWorkers:   4,
		QueryTimeout:   2 * time.Minute,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.StringVar(&o.DataDir, p+"data-dir", o.DataDir, "Directory of documents to index.")
	fs.StringSliceVar(&o.Extensions, p+"extensions", o.Extensions, "File extensions loaded from the data directory.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum passage size in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Characters shared by neighbouring passages.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of passages retrieved when a query does not specify k.")
	fs.Float64Var(&o.MinScore, p+"min-score", o.MinScore, "Drop passages scoring below this value (0 disables).")
	fs.StringVar(&o.PromptTemplate, p+"prompt-template", o.PromptTemplate, "Prompt template with {context} and {question} placeholders.")
	fs.StringVar(&o.PromptFile, p+"prompt-file", o.PromptFile, "Read the prompt template from this file.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "Optional chat system prompt.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Passages per embedding call while indexing.")
	fs.IntVar(&o.EmbedWorkers, p+"embed-workers", o.EmbedWorkers, "Concurrent embedding calls while indexing.")
	fs.BoolVar(&o.RequireNonEmpty, p+"require-non-empty", o.RequireNonEmpty, "Fail indexing when no passage is produced.")
	fs.DurationVar(&o.QueryTimeout, p+"query-timeout", o.QueryTimeout, "Timeout of one query (0 disables).")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		errs = append(errs, fmt.Errorf("rag.min-score must be in [0, 1]"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.embed-batch-size must be positive"))
	}
	if o.EmbedWorkers <= 0 {
		errs = append(errs, fmt.Errorf("rag.embed-workers must be positive"))
	}
	if o.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("rag.query-timeout must not be negative"))
	}
	if o.PromptTemplate != "" &&
		(!strings.Contains(o.PromptTemplate, "{context}") || !strings.Contains(o.PromptTemplate, "{question}")) {
		errs = append(errs, fmt.Errorf("rag.prompt-template must contain {context} and {question}"))
	}
	return errs
}

// Complete loads PromptFile into PromptTemplate.
func (o *Options) Complete() error {
	if o.PromptFile == "" {
		return nil
	}
	b, err := os.ReadFile(o.PromptFile)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	o.PromptTemplate = string(b)
	return nil
}
