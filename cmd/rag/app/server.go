// Package app provides the RAG server application.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicelyhorse/all-in-rag/cmd/rag/app/options"
	ragsvc "github.com/nicelyhorse/all-in-rag/internal/rag"
	"github.com/nicelyhorse/all-in-rag/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `all-in-rag answers questions over a directory of documents.

Documents are split into overlapping passages, embedded and kept in an
in-memory vector index. A question is embedded with the same model, the
closest passages are joined into a context and a chat model answers from it.

  all-in-rag --rag.data-dir ./data "红烧肉怎么做？"   answer once and exit
  all-in-rag --rag.data-dir ./data                 serve the HTTP API`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("Retrieval-augmented question answering"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithArgs(cobra.ArbitraryArgs),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
// Positional arguments form the question when --question is not given.
func run(opts *options.ServerOptions) app.RunFunc {
	return func(ctx context.Context, args []string) error {
		if opts.Question == "" && len(args) > 0 {
			opts.Question = strings.Join(args, " ")
		}

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}
