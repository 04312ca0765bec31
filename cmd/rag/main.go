// Package main is the entry point of the all-in-rag service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/nicelyhorse/all-in-rag/cmd/rag/app"
)

func main() {
	// .env 中的 API Key 等变量，文件不存在时忽略
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.NewApp().Run(ctx)
}
