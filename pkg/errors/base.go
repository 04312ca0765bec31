package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// ============================================================================
// Request Errors (Category: 01)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Bad request",
		MessageZH: "请求错误",
	})

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	})
)

// ============================================================================
// Resource Errors (Category: 04)
// ============================================================================

// ErrNotFound indicates the resource was not found.
var ErrNotFound = Register(&Errno{
	Code:      MakeCode(ServiceCommon, CategoryResource, 0),
	HTTP:      http.StatusNotFound,
	GRPCCode:  codes.NotFound,
	MessageEN: "Resource not found",
	MessageZH: "资源不存在",
})

// ============================================================================
// Internal Errors (Category: 07)
// ============================================================================

// ErrInternal indicates an internal server error.
var ErrInternal = Register(&Errno{
	Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
	HTTP:      http.StatusInternalServerError,
	GRPCCode:  codes.Internal,
	MessageEN: "Internal server error",
	MessageZH: "服务器内部错误",
})

// ============================================================================
// Network / Timeout Errors (Category: 10, 11)
// ============================================================================

var (
	// ErrServiceUnavailable indicates the service is unavailable.
	ErrServiceUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryNetwork, 1),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Service unavailable",
		MessageZH: "服务不可用",
	})

	// ErrTimeout indicates the operation timed out.
	ErrTimeout = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryTimeout, 0),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Operation timed out",
		MessageZH: "操作超时",
	})
)
