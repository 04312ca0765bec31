package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// RAG 核心与服务错误码: 20 (业务服务范围 20-79)
var (
	// 请求与配置错误 (类别 01)
	ErrRAGInvalidRequest = NewRequestError(ServiceRAG, 1).
				Message("Invalid request parameters", "请求参数无效").MustBuild()
	ErrRAGInvalidConfig = NewRequestError(ServiceRAG, 2).
				Message("Invalid configuration", "配置无效").MustBuild()
	ErrRAGDimensionMismatch = NewRequestError(ServiceRAG, 3).
				Message("Vector dimension mismatch", "向量维度不一致").MustBuild()

	// 资源错误 (类别 04)
	ErrRAGEmptyCorpus = NewBuilder(ServiceRAG, CategoryResource, 1).
				HTTP(http.StatusUnprocessableEntity).
				GRPC(codes.FailedPrecondition).
				Message("Corpus produced no passages", "语料为空，未生成任何文本块").MustBuild()
	ErrRAGDocumentNotFound = NewBuilder(ServiceRAG, CategoryResource, 2).
				HTTP(http.StatusNotFound).
				GRPC(codes.NotFound).
				Message("Document source not found", "文档来源不存在").MustBuild()

	// 状态冲突 (类别 05)
	ErrRAGIndexFrozen = NewConflictError(ServiceRAG, 1).
				Message("Index is frozen after build", "索引构建后不可修改").MustBuild()
	ErrRAGIndexNotReady = NewBuilder(ServiceRAG, CategoryConflict, 2).
				HTTP(http.StatusServiceUnavailable).
				GRPC(codes.Unavailable).
				Message("Index has not been built", "索引尚未构建").MustBuild()
	ErrRAGEmbedderMismatch = NewConflictError(ServiceRAG, 3).
				Message("Index was built with a different embedder", "索引与查询使用的嵌入模型不一致").MustBuild()

	// 内部错误 (类别 07)
	ErrRAGIndexFailed = NewInternalError(ServiceRAG, 1).
				Message("Document indexing failed", "文档索引失败").MustBuild()
	ErrRAGQueryFailed = NewInternalError(ServiceRAG, 2).
				Message("Query failed", "查询失败").MustBuild()

	// 超时 (类别 11)
	ErrRAGQueryTimeout = NewBuilder(ServiceRAG, CategoryTimeout, 1).
				HTTP(http.StatusRequestTimeout).
				GRPC(codes.DeadlineExceeded).
				Message("Query timeout", "查询超时").MustBuild()
)

// 模型供应商错误码: 90 (第三方服务范围 90-99)
var (
	ErrLLMUnsupported = NewRequestError(ServiceLLM, 1).
				Message("Operation not supported by provider", "供应商不支持该操作").MustBuild()
	ErrLLMTransient = NewBuilder(ServiceLLM, CategoryNetwork, 1).
			HTTP(http.StatusServiceUnavailable).
			GRPC(codes.Unavailable).
			Message("Model provider temporarily unavailable", "模型服务暂时不可用").MustBuild()
	ErrLLMPermanent = NewNetworkError(ServiceLLM, 2).
			Message("Model provider rejected the request", "模型服务拒绝了请求").MustBuild()
	ErrLLMMalformedResponse = NewNetworkError(ServiceLLM, 3).
				Message("Model provider returned a malformed response", "模型服务返回了无效响应").MustBuild()
	ErrLLMConfig = NewConfigError(ServiceLLM, 1).
			Message("Model provider misconfigured", "模型供应商配置错误").MustBuild()
)
