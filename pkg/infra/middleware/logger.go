package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/nicelyhorse/all-in-rag/pkg/infra/tracing"
)

// DefaultSkipPaths are not access-logged.
var DefaultSkipPaths = []string{"/healthz", "/readyz", "/metrics"}

// Logger logs one structured line per request. Server errors are logged at
// error level, client errors at warn level.
func Logger(skipPaths ...string) gin.HandlerFunc {
	if skipPaths == nil {
		skipPaths = DefaultSkipPaths
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"client_ip", c.ClientIP(),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
		}
		if rid := GetRequestID(c.Request.Context()); rid != "" {
			fields = append(fields, "request_id", rid)
		}
		if tid := tracing.TraceIDFromContext(c.Request.Context()); tid != "" {
			fields = append(fields, "trace_id", tid)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= 500:
			logger.Errorw("HTTP Request", fields...)
		case status >= 400:
			logger.Warnw("HTTP Request", fields...)
		default:
			logger.Infow("HTTP Request", fields...)
		}
	}
}
