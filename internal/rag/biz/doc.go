// Package biz 提供 RAG 服务的业务逻辑层。
//
// 该包将检索增强生成拆分为以下组件：
//   - Indexer: 切分文档、分批嵌入、构建冻结的内存索引
//   - Retriever: 嵌入问题并按余弦相似度取 top-k 片段
//   - Generator: 拼接上下文、填充提示词模板、调用 Answerer
//   - RAGService: 组合以上组件，负责索引替换、查询缓存与指标
package biz
