package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/httpclient"
)

// FailureKind 是供应商调用失败的分类。
type FailureKind int

const (
	// FailurePermanent 请求本身有问题（鉴权、参数、模型不存在），重试无意义。
	FailurePermanent FailureKind = iota
	// FailureTransient 暂时性故障（超时、限流、5xx、连接中断），可以重试。
	FailureTransient
	// FailureMalformedResponse 供应商返回了无法使用的响应（无法解析、条数不符、空结果）。
	FailureMalformedResponse
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureMalformedResponse:
		return "malformed_response"
	default:
		return "permanent"
	}
}

// errno 返回与失败类型对应的错误码模板。
func (k FailureKind) errno() *errors.Errno {
	switch k {
	case FailureTransient:
		return errors.ErrLLMTransient
	case FailureMalformedResponse:
		return errors.ErrLLMMalformedResponse
	default:
		return errors.ErrLLMPermanent
	}
}

// ProviderError 是供应商调用失败的统一错误类型。
//
// errors.Is 既能匹配底层错误（例如 context.DeadlineExceeded），也能匹配
// 失败类型对应的错误码（ErrLLMTransient 等）。
type ProviderError struct {
	Provider string
	Op       string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed (%s): %v", e.Provider, e.Op, e.Kind, e.Err)
}

// Unwrap 同时暴露底层错误和错误码。
func (e *ProviderError) Unwrap() []error {
	return []error{e.Err, e.Kind.errno().WithCause(e.Err)}
}

// NewProviderError 创建指定类型的供应商错误。
func NewProviderError(provider, op string, kind FailureKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Err: err}
}

// Wrap 按 Classify 的结果把 err 包装为 *ProviderError。
// err 为 nil 时返回 nil；已经是 *ProviderError 时原样返回。
func Wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return err
	}
	return NewProviderError(provider, op, Classify(err), err)
}

// Malformed 创建 FailureMalformedResponse 错误。
func Malformed(provider, op, format string, args ...any) *ProviderError {
	return NewProviderError(provider, op, FailureMalformedResponse, fmt.Errorf(format, args...))
}

// Classify 把任意非 nil 错误映射为失败类型。
//
//   - *ProviderError：使用其 Kind
//   - HTTP 状态：408/425/429/5xx 为 transient，其余 4xx 为 permanent
//   - 响应解析失败（DecodeError、JSON 语法或类型错误）：malformed_response
//   - 超时、连接错误、DNS 错误、意外 EOF：transient
//   - context.Canceled 及其他错误：permanent
func Classify(err error) FailureKind {
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}

	var se *httpclient.StatusError
	if stderrors.As(err, &se) {
		if se.Retryable() {
			return FailureTransient
		}
		return FailurePermanent
	}

	var de *httpclient.DecodeError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &de) || stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) {
		return FailureMalformedResponse
	}

	if stderrors.Is(err, context.Canceled) {
		return FailurePermanent
	}
	if stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNREFUSED) {
		return FailureTransient
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return FailureTransient
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return FailureTransient
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return FailureTransient
	}

	return FailurePermanent
}

// IsTransient 报告 err 是否为可重试的暂时性故障。
func IsTransient(err error) bool {
	return err != nil && Classify(err) == FailureTransient
}

// CheckBatch 校验批量 Embedding 的结果条数与维度。
func CheckBatch(provider string, vectors [][]float32, want int) error {
	if len(vectors) != want {
		return Malformed(provider, "embed", "expected %d embeddings, got %d", want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return Malformed(provider, "embed", "embedding %d is empty", i)
		}
	}
	return nil
}
