package httpclient

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func setupTracer(t *testing.T) trace.Tracer {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("test")
}

func newTestClient(retries int) *Client {
	c := NewClient(5*time.Second, retries)
	c.backoff = time.Millisecond
	return c
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"embedding":[0.5,1]}`))
	}))
	defer server.Close()

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	err := newTestClient(0).PostJSON(context.Background(), server.URL,
		map[string]string{"Authorization": "Bearer k"}, map[string]string{"input": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1}, out.Embedding)
}

func TestDoJSON_StatusError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("boom"))
			}))
			defer server.Close()

			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			err := newTestClient(0).DoJSON(req, nil)

			var se *StatusError
			require.True(t, stderrors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "boom", se.Body)
			assert.Equal(t, tt.retryable, se.Retryable())
		})
	}
}

func TestDoJSON_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	var out map[string]any
	err := newTestClient(0).DoJSON(req, &out)

	var de *DecodeError
	assert.True(t, stderrors.As(err, &de))
}

func TestDoRequest_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL, nil)
	require.NoError(t, newTestClient(2).DoJSON(req, nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRequest_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := newTestClient(3).DoRequest(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

// TestInjectTraceContext_WithSpan 测试有 Span 时注入 traceparent 头。
func TestInjectTraceContext_WithSpan(t *testing.T) {
	tracer := setupTracer(t)
	ctx, span := tracer.Start(context.Background(), "embed")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil).WithContext(ctx)
	newTestClient(0).injectTraceContext(req)

	// version-trace_id-parent_id-trace_flags
	assert.GreaterOrEqual(t, len(req.Header.Get("traceparent")), 55)
}

func TestInjectTraceContext_WithoutSpan(t *testing.T) {
	setupTracer(t)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	newTestClient(0).injectTraceContext(req)
	assert.Empty(t, req.Header.Get("traceparent"))
}

func TestInjectTraceContext_NilRequest(t *testing.T) {
	assert.NotPanics(t, func() { newTestClient(0).injectTraceContext(nil) })
}

func TestDoRequest_PropagatesTrace(t *testing.T) {
	tracer := setupTracer(t)

	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("traceparent")
	}))
	defer server.Close()

	ctx, span := tracer.Start(context.Background(), "chat")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := newTestClient(0).DoRequest(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.NotEmpty(t, received)
}
