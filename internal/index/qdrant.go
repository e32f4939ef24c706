package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-interview-go/internal/tracing"
	"ai-interview-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var qdrantTracer = otel.Tracer("ai-interview-go/index/qdrant")

// QdrantPointIDNamespace 用于生成确定性point ID的专用命名空间。
// 同一会话的同一分块总是得到同一个point ID。
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("a4f1c1d8-6f0b-4e2a-9c63-1d2b4a8e5f09"))

// QdrantStore 基于Qdrant的向量存储，每个会话一个collection。
// 存储位置由sessionID确定：collection名为 idx_<sessionID>。
type QdrantStore struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ VectorStore = (*QdrantStore)(nil)

// QdrantOption 构造函数选项
type QdrantOption func(*QdrantStore)

// WithQdrantHTTPTimeout 设置HTTP客户端超时
func WithQdrantHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *QdrantStore) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrantStore 创建Qdrant向量存储
func NewQdrantStore(endpoint, apiKey string, opts ...QdrantOption) (*QdrantStore, error) {
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	q := &QdrantStore{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// collectionName 由sessionID确定的collection名
func collectionName(sessionID string) string {
	return "idx_" + sessionID
}

// Build 实现 VectorStore 接口：创建collection并写入全部分块
func (q *QdrantStore) Build(ctx context.Context, sessionID string, chunks []types.Chunk, vectors [][]float64) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Build", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.collection", collectionName(sessionID)),
		attribute.Int("db.point_count", len(chunks)),
	)

	if len(chunks) != len(vectors) {
		return fmt.Errorf("分块与向量数量不匹配: %d != %d", len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("不能建立空collection")
	}

	createBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     len(vectors[0]),
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", collectionName(sessionID))
	if err := q.doRequest(ctx, http.MethodPut, path, createBody, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建collection失败: %w", err)
	}

	points := make([]map[string]interface{}, 0, len(chunks))
	for i, chunk := range chunks {
		pointID := uuid.NewV5(QdrantPointIDNamespace, fmt.Sprintf("%s:%d", sessionID, chunk.Seq))
		points = append(points, map[string]interface{}{
			"id":     pointID.String(),
			"vector": vectors[i],
			"payload": map[string]interface{}{
				"text":   chunk.Text,
				"seq":    chunk.Seq,
				"source": chunk.Provenance.Source,
				"path":   chunk.Provenance.Path,
				"page":   chunk.Provenance.Page,
				"url":    chunk.Provenance.URL,
			},
		})
	}

	upsertPath := fmt.Sprintf("/collections/%s/points?wait=true", collectionName(sessionID))
	if err := q.doRequest(ctx, http.MethodPut, upsertPath, map[string]interface{}{"points": points}, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("写入points失败: %w", err)
	}
	return nil
}

// Exists 实现 VectorStore 接口
func (q *QdrantStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s", q.endpoint, collectionName(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("创建检查collection请求失败: %w", err)
	}
	q.setHeaders(ctx, req)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("检查collection失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("检查collection返回状态码 %d", resp.StatusCode)
	}
}

// qdrantSearchResponse 检索响应
type qdrantSearchResponse struct {
	Result []struct {
		ID      interface{}            `json:"id"`
		Score   float32                `json:"score"`
		Payload map[string]interface{} `json:"payload"`
	} `json:"result"`
	Status string `json:"status"`
}

// Search 实现 VectorStore 接口
func (q *QdrantStore) Search(ctx context.Context, sessionID string, vector []float64, k int) ([]types.RetrievedChunk, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Search", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.collection", collectionName(sessionID)),
		attribute.Int("db.top_k", k),
	)

	searchBody := map[string]interface{}{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var response qdrantSearchResponse
	path := fmt.Sprintf("/collections/%s/points/search", collectionName(sessionID))
	if err := q.doRequest(ctx, http.MethodPost, path, searchBody, &response); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("检索collection失败: %w", err)
	}

	results := make([]types.RetrievedChunk, 0, len(response.Result))
	for _, item := range response.Result {
		chunk := types.Chunk{
			Text: stringPayload(item.Payload, "text"),
			Seq:  intPayload(item.Payload, "seq"),
			Provenance: types.Provenance{
				Source: stringPayload(item.Payload, "source"),
				Path:   stringPayload(item.Payload, "path"),
				Page:   intPayload(item.Payload, "page"),
				URL:    stringPayload(item.Payload, "url"),
			},
		}
		results = append(results, types.RetrievedChunk{Chunk: chunk, Score: item.Score})
	}
	span.SetAttributes(attribute.Int("result.count", len(results)))
	return results, nil
}

// Delete 实现 VectorStore 接口。collection不存在时也视为成功。
func (q *QdrantStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Delete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.collection", collectionName(sessionID)),
	)

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, collectionName(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("创建删除collection请求失败: %w", err)
	}
	q.setHeaders(ctx, req)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("删除collection失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		err := fmt.Errorf("删除collection返回状态码 %d", resp.StatusCode)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}
	return nil
}

// doRequest 发送JSON请求并解析响应，非2xx状态码视为错误
func (q *QdrantStore) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	q.setHeaders(ctx, req)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Qdrant返回状态码 %d: %s", resp.StatusCode, tracing.TruncateString(string(respBody), 200))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}

// setHeaders 设置认证头并注入追踪上下文
func (q *QdrantStore) setHeaders(ctx context.Context, req *http.Request) {
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

func stringPayload(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func intPayload(payload map[string]interface{}, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}
