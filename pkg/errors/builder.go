package errors

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// ErrnoBuilder provides a fluent API for building error codes.
//
// Example:
//
//	var ErrIndexFrozen = errors.NewBuilder(errors.ServiceRAG, errors.CategoryConflict, 1).
//	    HTTP(http.StatusConflict).
//	    GRPC(codes.FailedPrecondition).
//	    Message("Index is frozen", "索引已冻结").
//	    MustBuild()
type ErrnoBuilder struct {
	service   int
	category  int
	sequence  int
	http      int
	grpc      codes.Code
	messageEN string
	messageZH string
}

// NewBuilder creates a new ErrnoBuilder with the given service, category, and sequence.
func NewBuilder(service, category, sequence int) *ErrnoBuilder {
	return &ErrnoBuilder{
		service:  service,
		category: category,
		sequence: sequence,
		http:     http.StatusInternalServerError,
		grpc:     codes.Internal,
	}
}

// HTTP sets the HTTP status code.
func (b *ErrnoBuilder) HTTP(status int) *ErrnoBuilder {
	b.http = status
	return b
}

// GRPC sets the gRPC status code.
func (b *ErrnoBuilder) GRPC(code codes.Code) *ErrnoBuilder {
	b.grpc = code
	return b
}

// Message sets both English and Chinese messages.
func (b *ErrnoBuilder) Message(en, zh string) *ErrnoBuilder {
	b.messageEN = en
	b.messageZH = zh
	return b
}

// Build creates and registers the Errno.
// Returns an error if the code is out of range, the English message is
// missing, or the code is already registered.
func (b *ErrnoBuilder) Build() (*Errno, error) {
	if b.service < 0 || b.service > 99 || b.category < 0 || b.category > 99 || b.sequence < 0 || b.sequence > 999 {
		return nil, fmt.Errorf("errno code parts out of range: %d/%d/%d", b.service, b.category, b.sequence)
	}
	if b.messageEN == "" {
		return nil, fmt.Errorf("english message is required")
	}

	e := &Errno{
		Code:      MakeCode(b.service, b.category, b.sequence),
		HTTP:      b.http,
		GRPCCode:  b.grpc,
		MessageEN: b.messageEN,
		MessageZH: b.messageZH,
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		return nil, fmt.Errorf("errno code %d already registered: %s", e.Code, existing.MessageEN)
	}
	errnoRegistry[e.Code] = e

	return e, nil
}

// MustBuild creates and registers the Errno.
// Panics if registration fails.
func (b *ErrnoBuilder) MustBuild() *Errno {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// NewRequestError creates a builder for request/validation errors (HTTP 400).
func NewRequestError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryRequest, sequence).
		HTTP(http.StatusBadRequest).
		GRPC(codes.InvalidArgument)
}

// NewConflictError creates a builder for conflict errors (HTTP 409).
func NewConflictError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryConflict, sequence).
		HTTP(http.StatusConflict).
		GRPC(codes.FailedPrecondition)
}

// NewInternalError creates a builder for internal errors (HTTP 500).
func NewInternalError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryInternal, sequence)
}

// NewNetworkError creates a builder for upstream/network errors (HTTP 502).
func NewNetworkError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryNetwork, sequence).
		HTTP(http.StatusBadGateway).
		GRPC(codes.Unavailable)
}

// NewConfigError creates a builder for configuration errors (HTTP 500).
func NewConfigError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryConfig, sequence).
		GRPC(codes.FailedPrecondition)
}
