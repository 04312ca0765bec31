// Package docutil 提供文档加载相关的工具函数。
package docutil

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/nicelyhorse/all-in-rag/internal/model"
	"github.com/nicelyhorse/all-in-rag/internal/pkg/rag/textutil"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/id"
)

// DefaultExtensions 默认加载的文件扩展名。
var DefaultExtensions = []string{".md", ".mdx", ".txt", ".pdf"}

// LoadDocuments 递归加载 dir 下扩展名匹配的文件，按路径排序，
// 保证同一目录两次加载得到相同顺序。exts 为空时使用 DefaultExtensions。
// 单个文件读取失败会记录警告并跳过。
func LoadDocuments(dir string, exts []string) ([]model.Document, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	if !DirExists(dir) {
		return nil, errors.ErrRAGDocumentNotFound.WithMessagef("document directory %q does not exist", dir)
	}

	files, err := FindFiles(dir, exts)
	if err != nil {
		return nil, fmt.Errorf("find files in %s: %w", dir, err)
	}

	docs := make([]model.Document, 0, len(files))
	for _, path := range files {
		doc, err := LoadDocument(path)
		if err != nil {
			logger.Warnw("skip unreadable document", "path", path, "error", err.Error())
			continue
		}
		docs = append(docs, doc)
	}

	logger.Infow("documents loaded", "dir", dir, "files", len(files), "documents", len(docs))
	return docs, nil
}

// LoadDocument 读取单个文件。PDF 提取纯文本，其余按 UTF-8 文本读取。
// 文档 ID 由修改时间与路径确定性生成，内容不变时重建索引 ID 也不变。
func LoadDocument(path string) (model.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Document{}, err
	}

	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		content, err = readPDF(path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		content = string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	title := textutil.MarkdownTitle(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return model.Document{
		ID:      id.Deterministic(info.ModTime(), filepath.ToSlash(path)),
		Title:   title,
		Source:  path,
		Content: content,
	}, nil
}

// readPDF 按页提取 PDF 纯文本，页之间以空行分隔，无法解析的页被跳过。
func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Debugw("skip unparsable pdf page", "path", path, "page", i, "error", err.Error())
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// FindFiles 在目录中递归查找匹配指定扩展名的文件，结果按路径排序。
// extensions 是文件扩展名列表，如 []string{".md", ".mdx"}。
func FindFiles(dir string, extensions []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(extensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// DirExists 检查目录是否存在。
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
