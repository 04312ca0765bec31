package response

import (
	stdjson "encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, lang string, h gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if lang != "" {
		c.Request.Header.Set("Accept-Language", lang)
	}
	c.Writer.Header().Set(HeaderXRequestID, "req-1")
	h(c)

	var body Response
	require.NoError(t, stdjson.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestOK(t *testing.T) {
	w, body := serve(t, "", func(c *gin.Context) { OK(c, map[string]int{"n": 1}) })

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "success", body.Message)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotZero(t, body.Timestamp)
	assert.Equal(t, map[string]any{"n": float64(1)}, body.Data)
}

func TestFail(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		lang   string
		status int
		code   int
		msg    string
	}{
		{
			name:   "errno",
			err:    errors.ErrRAGIndexNotReady,
			status: http.StatusServiceUnavailable,
			code:   errors.ErrRAGIndexNotReady.Code,
			msg:    errors.ErrRAGIndexNotReady.MessageEN,
		},
		{
			name:   "errno zh",
			err:    errors.ErrRAGIndexNotReady,
			lang:   "zh-CN",
			status: http.StatusServiceUnavailable,
			code:   errors.ErrRAGIndexNotReady.Code,
			msg:    errors.ErrRAGIndexNotReady.MessageZH,
		},
		{
			name:   "wrapped errno",
			err:    fmt.Errorf("query: %w", errors.ErrRAGInvalidRequest.WithMessage("question must not be empty")),
			status: http.StatusBadRequest,
			code:   errors.ErrRAGInvalidRequest.Code,
			msg:    "question must not be empty",
		},
		{
			name:   "plain error",
			err:    fmt.Errorf("boom"),
			status: http.StatusInternalServerError,
			code:   errors.ErrInternal.Code,
			msg:    errors.ErrInternal.MessageEN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, tt.lang, func(c *gin.Context) { Fail(c, tt.err) })
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.msg, body.Message)
			assert.Nil(t, body.Data)
		})
	}
}

func TestHTTPStatus_Fallback(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{0, http.StatusOK},
		{errors.MakeCode(77, errors.CategoryRequest, 999), http.StatusBadRequest},
		{errors.MakeCode(77, errors.CategoryTimeout, 999), http.StatusGatewayTimeout},
		{errors.MakeCode(77, errors.CategoryInternal, 999), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&Response{Code: tt.code}).HTTPStatus(), "code %d", tt.code)
	}
}
