// Package middleware provides the gin middlewares of the HTTP API.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/nicelyhorse/all-in-rag/pkg/utils/id"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/response"
)

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = response.HeaderXRequestID

type requestIDKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the request ID from the context, or "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestID reuses an incoming X-Request-ID or generates a ULID, echoes it
// in the response header and stores it in the request context.
func RequestID(gen id.Generator) gin.HandlerFunc {
	if gen == nil {
		gen = id.NewULIDGenerator()
	}
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" {
			rid = gen.Generate()
		}
		c.Header(HeaderXRequestID, rid)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
