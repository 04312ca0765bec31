// Package store 提供 RAG 服务的向量索引。
//
// MemoryIndex 是一个暴力余弦相似度索引：先构建，后冻结。
// 构建完成后索引不可修改，Search 不做任何写操作，可被多个 goroutine 并发调用。
// 重新索引时应构建一个新的 MemoryIndex 并整体替换旧索引。
package store
