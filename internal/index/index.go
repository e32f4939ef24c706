package index

import (
	"context"
	"fmt"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/tracing"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var indexTracer = otel.Tracer("ai-interview-go/index")

// VectorStore 会话级向量存储接口。
// 每个会话恰好对应一个索引；Build是一次性的，建成后只读。
type VectorStore interface {
	// Build 将分块与向量持久化到由sessionID确定的存储位置。
	// 失败时不得留下可用但不完整的索引。
	Build(ctx context.Context, sessionID string, chunks []types.Chunk, vectors [][]float64) error

	// Exists 判断会话的索引是否存在
	Exists(ctx context.Context, sessionID string) (bool, error)

	// Search 在会话的索引中检索与查询向量最相似的k个分块
	Search(ctx context.Context, sessionID string, vector []float64, k int) ([]types.RetrievedChunk, error)

	// Delete 删除会话的全部持久化状态；对不存在或半成品状态也应安全
	Delete(ctx context.Context, sessionID string) error
}

// Index 会话索引的生命周期管理：嵌入、建立、重开、检索、删除
type Index struct {
	store       VectorStore
	embedder    embedding.Embedder
	defaultTopK int
}

// NewIndex 创建索引管理器
func NewIndex(store VectorStore, embedder embedding.Embedder, defaultTopK int) *Index {
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	return &Index{store: store, embedder: embedder, defaultTopK: defaultTopK}
}

// Build 嵌入所有分块并建立会话索引。
// 零分块返回EmptyCorpus；任何失败都会清理掉可能的部分状态。
func (i *Index) Build(ctx context.Context, sessionID string, chunks []types.Chunk) error {
	ctx, span := indexTracer.Start(ctx, "Index.Build", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("chunk.count", len(chunks)),
	)

	if len(chunks) == 0 {
		err := apperr.NewEmptyCorpusError(sessionID, "没有产出任何分块")
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	texts := make([]string, len(chunks))
	for idx, c := range chunks {
		texts[idx] = c.Text
	}

	vectors, err := i.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return fmt.Errorf("嵌入分块失败: %w", err)
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("嵌入结果数量不匹配: 期望 %d，实际 %d", len(chunks), len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return err
	}

	if err := i.store.Build(ctx, sessionID, chunks, vectors); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		// 不留半成品索引
		if delErr := i.store.Delete(ctx, sessionID); delErr != nil {
			span.AddEvent("teardown_failed", trace.WithAttributes(
				attribute.String("error", delErr.Error()),
			))
		}
		return fmt.Errorf("建立会话 %s 的索引失败: %w", sessionID, err)
	}
	return nil
}

// Open 重开一个已建立的会话索引用于查询。
// 索引不存在时返回SessionNotFound。
func (i *Index) Open(ctx context.Context, sessionID string) (*Session, error) {
	exists, err := i.store.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("检查会话 %s 的索引失败: %w", sessionID, err)
	}
	if !exists {
		return nil, apperr.NewSessionNotFoundError(sessionID)
	}
	return &Session{index: i, sessionID: sessionID}, nil
}

// Delete 删除会话索引，对半成品状态也安全
func (i *Index) Delete(ctx context.Context, sessionID string) error {
	return i.store.Delete(ctx, sessionID)
}

// Session 已打开的只读会话索引
type Session struct {
	index     *Index
	sessionID string
}

// SessionID 返回会话标识
func (s *Session) SessionID() string {
	return s.sessionID
}

// Retrieve 检索与查询最相似的k个分块，k<=0时使用默认值
func (s *Session) Retrieve(ctx context.Context, query string, k int) ([]types.RetrievedChunk, error) {
	ctx, span := indexTracer.Start(ctx, "Index.Retrieve", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if k <= 0 {
		k = s.index.defaultTopK
	}
	span.SetAttributes(
		attribute.String("session.id", s.sessionID),
		attribute.String("query", tracing.SafeQuery(query)),
		attribute.Int("top_k", k),
	)

	vectors, err := s.index.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("嵌入查询失败: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("查询嵌入结果数量异常: %d", len(vectors))
	}

	results, err := s.index.store.Search(ctx, s.sessionID, vectors[0], k)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("检索会话 %s 失败: %w", s.sessionID, err)
	}
	span.SetAttributes(attribute.Int("result.count", len(results)))
	return results, nil
}
