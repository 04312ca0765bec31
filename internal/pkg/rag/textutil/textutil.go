// Package textutil 提供 RAG 相关的文本与向量工具函数，以及递归文本切分器。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
)

// Dot 计算两个等长向量的点积。调用方负责保证维度一致。
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm 计算向量的 L2 范数。
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// HashString 计算字符串的 SHA-256 十六进制摘要。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

var markdownTitle = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// MarkdownTitle 返回 Markdown 文档的第一个一级标题，没有则返回空串。
func MarkdownTitle(content string) string {
	m := markdownTitle.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
