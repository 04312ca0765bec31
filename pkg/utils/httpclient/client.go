// Package httpclient provides the HTTP client used by model providers.
//
// Failed responses are returned as *StatusError and undecodable bodies as
// *DecodeError, so callers can classify failures with errors.As instead of
// matching message text.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/nicelyhorse/all-in-rag/pkg/utils/json"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4096

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status signals a temporary condition.
func (e *StatusError) Retryable() bool {
	return RetryableStatus(e.StatusCode)
}

// RetryableStatus reports whether a request failing with code may succeed later.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// DecodeError is returned when a successful response body is not valid JSON
// for the target type.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Client wraps http.Client with trace propagation and optional retries.
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a client. timeout bounds each attempt; maxRetries is the
// number of extra attempts made for retryable statuses and transport errors.
func NewClient(timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
	}
}

// DoRequest executes req, retrying retryable statuses. The request body is
// buffered so that it can be replayed. A response is returned for every
// status; the last retryable response is returned when retries run out.
func (c *Client) DoRequest(req *http.Request) (*http.Response, error) {
	c.injectTraceContext(req)

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.httpClient.Do(req)
		last := attempt >= c.maxRetries
		if err == nil && (!RetryableStatus(resp.StatusCode) || last) {
			return resp, nil
		}
		if err != nil && last {
			return nil, err
		}
		if err == nil {
			_ = resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
}

// DoJSON executes req and decodes a successful response into v.
func (c *Client) DoJSON(req *http.Request, v any) error {
	resp, err := c.DoRequest(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}

// PostJSON marshals in, posts it to url with the given headers and decodes
// the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(req, out)
}

// injectTraceContext 将 W3C Trace Context 头注入到请求中。
// 请求为 nil、未设置全局传播器或 Context 中没有 Span 时不做任何事。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil {
		return
	}

	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}
	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
