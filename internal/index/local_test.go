package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/embedding"
	"ai-interview-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) (*Index, *LocalStore) {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewIndex(store, embedding.NewHashEmbedder(64), 4), store
}

func testChunks() []types.Chunk {
	return []types.Chunk{
		{Text: "goroutine调度器采用GMP模型管理并发任务", Seq: 0, Provenance: types.Provenance{Source: "notes.pdf", Page: 1}},
		{Text: "Redis cluster uses hash slots to shard keys across nodes", Seq: 1, Provenance: types.Provenance{Source: "notes.pdf", Page: 2}},
		{Text: "quarterly revenue grew by twelve percent year over year", Seq: 2, Provenance: types.Provenance{Source: "notes.pdf", Page: 3}},
	}
}

func TestBuildOpenRetrieveRoundTrip(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, "sess_rt", testChunks()))

	sess, err := idx.Open(ctx, "sess_rt")
	require.NoError(t, err)

	results, err := sess.Retrieve(ctx, "Redis hash slots sharding", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Chunk.Text, "hash slots", "词面最接近的分块应排在最前")
	assert.Equal(t, "notes.pdf", results[0].Chunk.Provenance.Source)

	// 分数按降序排列
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestRetrieveDefaultTopK(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, "sess_topk", testChunks()))
	sess, err := idx.Open(ctx, "sess_topk")
	require.NoError(t, err)

	// k<=0回退到默认值，但不会超过语料总量
	results, err := sess.Retrieve(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestOpenMissingSession(t *testing.T) {
	idx, _ := newTestIndex(t)

	_, err := idx.Open(context.Background(), "never_built")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrSessionNotFound))
}

func TestBuildEmptyCorpusLeavesNoIndex(t *testing.T) {
	idx, store := newTestIndex(t)
	ctx := context.Background()

	err := idx.Build(ctx, "sess_empty", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrEmptyCorpus))

	exists, err := store.Exists(ctx, "sess_empty")
	require.NoError(t, err)
	assert.False(t, exists, "空语料不应留下任何索引")
}

func TestDeleteThenOpenFails(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, "sess_del", testChunks()))
	require.NoError(t, idx.Delete(ctx, "sess_del"))

	_, err := idx.Open(ctx, "sess_del")
	assert.True(t, errors.Is(err, apperr.ErrSessionNotFound))

	// 删除不存在的会话也应成功
	assert.NoError(t, idx.Delete(ctx, "sess_del"))
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Exists(context.Background(), "../escape")
	assert.Error(t, err)
	err = store.Build(context.Background(), "a/b", testChunks(), [][]float64{{1}, {1}, {1}})
	assert.Error(t, err)
}

func TestLocalStoreBuildAtomic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// 数量不匹配的写入失败后不得留下索引文件
	err = store.Build(ctx, "sess_bad", testChunks(), [][]float64{{1}})
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "sess_bad", indexFileName))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}
