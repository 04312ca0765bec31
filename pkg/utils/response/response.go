// Package response provides the unified JSON envelope of the HTTP API.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

// HeaderXRequestID carries the request identifier.
const HeaderXRequestID = "X-Request-ID"

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// HTTPCode is the HTTP status code (optional, for client convenience)
	HTTPCode int `json:"http_code,omitempty"`

	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:     0,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// Err creates an error response from an Errno, using the message for lang.
func Err(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.Message(lang),
	}
}

// HTTPStatus returns the HTTP status code for this response.
// Unset status codes are derived from the registered errno, then from the
// error category.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// OK writes data in a success envelope.
func OK(c *gin.Context, data any) {
	write(c, Success(data))
}

// Fail writes err in an error envelope. Errors that are not an *errors.Errno
// become ErrInternal; the message language follows Accept-Language.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	_ = c.Error(err)
	write(c, Err(e, c.GetHeader("Accept-Language")))
}

func write(c *gin.Context, r *Response) {
	r.RequestID = c.Writer.Header().Get(HeaderXRequestID)
	r.Timestamp = time.Now().UnixMilli()
	c.JSON(r.HTTPStatus(), r)
}
