package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
)

// HashEmbedder 确定性的离线Embedder，把词频散列到固定维度并做L2归一化。
// 相同文本得到相同向量，重叠词越多余弦相似度越高。
// 仅用于测试和无外部服务的本地运行，不具备语义相似度。
type HashEmbedder struct {
	dimensions int
}

var _ embedding.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder 创建确定性Embedder
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 128
	}
	return &HashEmbedder{dimensions: dimensions}
}

// GetDimensions 返回向量维度
func (h *HashEmbedder) GetDimensions() int {
	return h.dimensions
}

// EmbedStrings 实现 embedding.Embedder 接口
func (h *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = h.embed(text)
	}
	return vectors, nil
}

func (h *HashEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		idx := int(hasher.Sum32()) % h.dimensions
		if idx < 0 {
			idx += h.dimensions
		}
		vec[idx]++
	}

	// L2归一化，使点积即余弦相似度
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
