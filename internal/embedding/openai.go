package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"ai-interview-go/internal/config"

	"github.com/cloudwego/eino/components/embedding"
)

// OpenAIEmbedder 实现 embedding.Embedder 接口，
// 对接任意OpenAI兼容的embeddings端点（OpenRouter、DashScope、本地推理服务）。
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	batchSize  int
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// 确保实现了eino的Embedder接口
var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder 创建OpenAI兼容的Embedder
func NewOpenAIEmbedder(apiKey string, cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API密钥不能为空")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1/embeddings"
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	return &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     log.New(os.Stderr, "[Embedder] ", log.LstdFlags),
	}, nil
}

// GetDimensions 返回配置的向量维度
func (o *OpenAIEmbedder) GetDimensions() int {
	return o.dimensions
}

// openAIEmbeddingRequest OpenAI兼容的embedding请求
type openAIEmbeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openAIEmbeddingResponse OpenAI兼容的embedding响应
type openAIEmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// EmbedStrings 将文本批量转换为向量，实现 embedding.Embedder 接口。
// 超过批大小的输入分批请求，保持输入顺序。
func (o *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	result := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := start + o.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := o.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)
	}
	return result, nil
}

// embedBatch 单次请求嵌入一批文本
func (o *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	reqBody := openAIEmbeddingRequest{
		Input:      texts,
		Model:      o.model,
		Dimensions: o.dimensions,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化embedding请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建embedding请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求embedding接口失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取embedding响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding接口返回状态码 %d: %s", resp.StatusCode, string(body))
	}

	var response openAIEmbeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("解析embedding响应失败: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("embedding接口错误: %s (%s)", response.Error.Message, response.Error.Code)
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embedding结果数量不匹配: 期望 %d，实际 %d", len(texts), len(response.Data))
	}

	// 按index还原输入顺序
	vectors := make([][]float64, len(texts))
	for _, entry := range response.Data {
		if entry.Index < 0 || entry.Index >= len(texts) {
			return nil, fmt.Errorf("embedding结果index越界: %d", entry.Index)
		}
		vectors[entry.Index] = entry.Embedding
	}
	return vectors, nil
}
