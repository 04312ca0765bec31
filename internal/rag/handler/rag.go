// Package handler provides HTTP handlers for RAG service.
package handler

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/internal/rag/biz"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/json"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/response"
	"github.com/nicelyhorse/all-in-rag/pkg/validator"
)

// maxBodyBytes 请求体上限，内联文档索引请求可能较大。
const maxBodyBytes = 32 << 20

// Exporter renders metrics in the Prometheus text format.
type Exporter interface {
	Export() string
}

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service biz.Service
	metrics Exporter
	dataDir string
}

// NewRAGHandler creates a new RAGHandler. dataDir is indexed when an index
// request names neither a directory nor documents.
func NewRAGHandler(service biz.Service, metrics Exporter, dataDir string) *RAGHandler {
	return &RAGHandler{
		service: service,
		metrics: metrics,
		dataDir: dataDir,
	}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question string `json:"question" validate:"required,notblank,max=4096"`
	// K 返回片段数，0 表示使用服务默认值。
	K int `json:"k" validate:"gte=0,lte=100"`
}

// DocumentRequest is a document supplied inline.
type DocumentRequest struct {
	ID      string `json:"id" validate:"required,notblank,max=256"`
	Title   string `json:"title" validate:"max=512"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

// IndexRequest represents an index request. Documents take precedence over
// Directory; with neither, the configured data directory is indexed.
// Directory is resolved against the data directory and must stay inside it.
type IndexRequest struct {
	Directory string            `json:"directory"`
	Documents []DocumentRequest `json:"documents" validate:"omitempty,dive"`
}

// Query answers a question against the current index.
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.service.Query(c.Request.Context(), req.Question, req.K)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

// Index rebuilds the index from inline documents or a directory.
func (h *RAGHandler) Index(c *gin.Context) {
	var req IndexRequest
	if !bind(c, &req) {
		return
	}

	var (
		stats biz.IndexStats
		err   error
	)
	if len(req.Documents) > 0 {
		docs := make([]model.Document, 0, len(req.Documents))
		seen := make(map[string]struct{}, len(req.Documents))
		for _, d := range req.Documents {
			if _, dup := seen[d.ID]; dup {
				response.Fail(c, errors.ErrRAGInvalidRequest.WithMessagef("duplicate document id %q", d.ID))
				return
			}
			seen[d.ID] = struct{}{}
			docs = append(docs, model.Document{ID: d.ID, Title: d.Title, Source: d.Source, Content: d.Content})
		}
		stats, err = h.service.Index(c.Request.Context(), docs)
	} else {
		dir, derr := h.resolveDir(req.Directory)
		if derr != nil {
			response.Fail(c, derr)
			return
		}
		stats, err = h.service.IndexDirectory(c.Request.Context(), dir)
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, stats)
}

// resolveDir 把请求中的目录解析为数据目录下的路径。相对路径基于数据目录，
// 绝对路径也必须位于数据目录之内。符号链接不做解析。
func (h *RAGHandler) resolveDir(dir string) (string, error) {
	if h.dataDir == "" {
		if dir == "" {
			return "", errors.ErrRAGInvalidRequest.WithMessage("directory or documents is required")
		}
		return "", errors.ErrRAGInvalidRequest.WithMessage("directory indexing is disabled without a data directory")
	}
	if dir == "" {
		return h.dataDir, nil
	}

	root, err := filepath.Abs(h.dataDir)
	if err != nil {
		return "", errors.ErrRAGInvalidConfig.WithMessagef("resolve data directory %q", h.dataDir).WithCause(err)
	}
	path := dir
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.ErrRAGInvalidRequest.WithMessagef("directory %q is outside the data directory", dir)
	}
	return path, nil
}

// ClearCache drops cached query results and embeddings. The index is kept.
func (h *RAGHandler) ClearCache(c *gin.Context) {
	stats, err := h.service.ClearCache(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, stats)
}

// Stats returns knowledge base statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	response.OK(c, h.service.Stats(c.Request.Context()))
}

// Prompt returns the effective prompt template.
func (h *RAGHandler) Prompt(c *gin.Context) {
	response.OK(c, gin.H{"template": h.service.PromptTemplate()})
}

// Healthz reports liveness.
func (h *RAGHandler) Healthz(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok", "version": version.Get().GitVersion})
}

// Readyz reports whether an index is installed.
func (h *RAGHandler) Readyz(c *gin.Context) {
	if !h.service.Stats(c.Request.Context()).Ready {
		response.Fail(c, errors.ErrRAGIndexNotReady)
		return
	}
	response.OK(c, gin.H{"status": "ready"})
}

// Metrics writes the Prometheus text exposition.
func (h *RAGHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export()))
}

// bind decodes the JSON body into req and validates it, writing the error
// response itself when it returns false.
func bind(c *gin.Context, req any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		response.Fail(c, errors.ErrBadRequest.WithMessage("unreadable request body").WithCause(err))
		return false
	}
	// 空请求体等同于 {}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, req); err != nil {
			response.Fail(c, errors.ErrBadRequest.WithMessage("malformed JSON body").WithCause(err))
			return false
		}
	}

	lang := strings.TrimSpace(c.GetHeader("Accept-Language"))
	if verrs := validator.StructWithLang(req, lang); verrs != nil {
		response.Fail(c, verrs.Errno())
		return false
	}
	return true
}
