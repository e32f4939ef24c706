package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 两个实现都必须满足本包导出的Embedder契约
var (
	_ Embedder = (*HashEmbedder)(nil)
	_ Embedder = (*OpenAIEmbedder)(nil)
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	v1, err := e.EmbedStrings(ctx, []string{"golang concurrency patterns"})
	require.NoError(t, err)
	v2, err := e.EmbedStrings(ctx, []string{"golang concurrency patterns"})
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1[0], 64)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	vecs, err := e.EmbedStrings(ctx, []string{
		"distributed systems in go",
		"distributed systems in rust",
		"french cooking recipes",
	})
	require.NoError(t, err)

	simRelated := dot(vecs[0], vecs[1])
	simUnrelated := dot(vecs[0], vecs[2])
	assert.Greater(t, simRelated, simUnrelated, "词面重叠更多的文本应当更相似")
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(32)
	vecs, err := e.EmbedStrings(context.Background(), []string{"a b c d"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, dot(vecs[0], vecs[0]), 1e-9)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
