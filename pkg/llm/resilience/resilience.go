// Package resilience 为模型供应商调用提供重试、熔断和单次调用超时。
//
// 只有 llm.FailureTransient 会被重试；permanent 与 malformed_response
// 立即返回给调用方。
package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/nicelyhorse/all-in-rag/pkg/llm"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始退避时间。
	InitialDelay time.Duration
	// MaxDelay 最大退避时间。
	MaxDelay time.Duration
	// Multiplier 退避倍增因子。
	Multiplier float64
	// Retryable 判断错误是否可重试，默认为 llm.IsTransient。
	Retryable func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Retryable:    llm.IsTransient,
	}
}

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败多少次后打开熔断器。
	MaxFailures int
	// Timeout 熔断器打开后多久进入半开状态。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测调用数。
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreakerState 熔断器状态。
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitBreakerOpen 熔断器打开时返回。
var ErrCircuitBreakerOpen = stderrors.New("circuit breaker is open")

// CircuitBreaker 熔断器。只有反映供应商健康状况的失败（transient、
// malformed_response）才计数，调用方自身的错误不会打开熔断器。
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	now    func() time.Time

	mu                sync.Mutex
	state             CircuitBreakerState
	failures          int
	openedAt          time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
}

// NewCircuitBreaker 创建熔断器。
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute 通过熔断器执行 fn。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		logger.Infow("circuit breaker transitioning to half-open")
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenSuccesses = 0
	}

	if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
		return ErrCircuitBreakerOpen
	}
	cb.halfOpenCalls++
	return nil
}

func countsAsFailure(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}
	return llm.Classify(err) != llm.FailurePermanent
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !countsAsFailure(err) {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.config.HalfOpenMaxCalls {
				logger.Infow("circuit breaker transitioning to closed")
				cb.state = StateClosed
				cb.failures = 0
			}
		}
		return
	}

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			logger.Warnw("circuit breaker opening", "failures", cb.failures, "max_failures", cb.config.MaxFailures)
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	case StateHalfOpen:
		logger.Warnw("circuit breaker re-opening after half-open failure")
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// State 返回当前状态。
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats 返回熔断器统计信息。
func (cb *CircuitBreaker) Stats() map[string]any {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]any{
		"state":    cb.state.String(),
		"failures": cb.failures,
	}
}

// Reset 重置为关闭状态。
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.halfOpenSuccesses = 0
}

// RetryWithBackoff 以指数退避重试 fn，直到成功、遇到不可重试的错误、
// 次数用尽或 ctx 结束。返回最后一次调用的错误。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = llm.IsTransient
	}

	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if stderrors.Is(err, ErrCircuitBreakerOpen) || !retryable(err) {
			return err
		}
		if attempt >= config.MaxAttempts {
			logger.Warnw("max retry attempts reached", "attempts", attempt, "error", err.Error())
			return err
		}

		logger.Debugw("retrying after delay", "attempt", attempt, "delay", delay, "error", err.Error())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}
