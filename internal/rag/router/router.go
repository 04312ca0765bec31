// Package router provides RAG service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/nicelyhorse/all-in-rag/internal/rag/handler"
	"github.com/nicelyhorse/all-in-rag/pkg/infra/middleware"
)

// New builds the gin engine with the middleware chain and the RAG routes.
// A nil tp selects the global tracer provider.
func New(h *handler.RAGHandler, tp trace.TracerProvider) *gin.Engine {
	logger.Info("Registering RAG routes...")

	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestID(nil),
		middleware.Tracing(tp, middleware.DefaultSkipPaths...),
		middleware.Logger(middleware.DefaultSkipPaths...),
	)

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/v1")
	{
		rag := v1.Group("/rag")
		{
			rag.POST("/index", h.Index)
			rag.POST("/query", h.Query)
			rag.GET("/stats", h.Stats)
			rag.GET("/prompt", h.Prompt)
			rag.DELETE("/cache", h.ClearCache)
		}
	}

	logger.Info("HTTP routes registered")
	return r
}
