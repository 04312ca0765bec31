package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/response"
)

// Recovery turns a panicking handler into an ErrInternal response.
// The stack trace goes to the log only, never to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Errorw("panic recovered",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", GetRequestID(c.Request.Context()),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			response.Fail(c, errors.ErrInternal.WithCause(fmt.Errorf("panic: %v", r)))
			c.Abort()
		}()
		c.Next()
	}
}
