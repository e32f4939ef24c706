package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"ai-interview-go/internal/types"
)

// indexFileName 会话目录下的索引文件名
const indexFileName = "index.gob"

// sessionIDPattern 存储键只接受受控字符，防止路径拼接越界
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// localIndexFile 落盘的索引内容
type localIndexFile struct {
	Chunks  []types.Chunk
	Vectors [][]float64
}

// LocalStore 基于本地磁盘的向量存储：每个会话一个目录，
// gob持久化，暴力余弦检索。适用于测试与单机部署。
type LocalStore struct {
	rootDir string
	mu      sync.RWMutex // 保护并发Build/Delete对同一目录的竞争
}

var _ VectorStore = (*LocalStore)(nil)

// NewLocalStore 创建本地向量存储，rootDir不存在时自动创建
func NewLocalStore(rootDir string) (*LocalStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("本地索引根目录不能为空")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建索引根目录失败: %w", err)
	}
	return &LocalStore{rootDir: rootDir}, nil
}

// sessionDir 由sessionID确定的存储位置
func (l *LocalStore) sessionDir(sessionID string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("非法的会话标识: %q", sessionID)
	}
	return filepath.Join(l.rootDir, sessionID), nil
}

// Build 实现 VectorStore 接口
func (l *LocalStore) Build(ctx context.Context, sessionID string, chunks []types.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("分块与向量数量不匹配: %d != %d", len(chunks), len(vectors))
	}
	dir, err := l.sessionDir(sessionID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建会话索引目录失败: %w", err)
	}

	// 先写临时文件再重命名，避免中途失败留下可读的半成品
	tmp, err := os.CreateTemp(dir, "index_*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时索引文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(&localIndexFile{Chunks: chunks, Vectors: vectors}); err != nil {
		tmp.Close()
		return fmt.Errorf("写入索引文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时索引文件失败: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, indexFileName)); err != nil {
		return fmt.Errorf("提交索引文件失败: %w", err)
	}
	return nil
}

// Exists 实现 VectorStore 接口
func (l *LocalStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	dir, err := l.sessionDir(sessionID)
	if err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err = os.Stat(filepath.Join(dir, indexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Search 实现 VectorStore 接口。每次查询重新从磁盘载入，索引建成后只读。
func (l *LocalStore) Search(ctx context.Context, sessionID string, vector []float64, k int) ([]types.RetrievedChunk, error) {
	dir, err := l.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("打开索引文件失败: %w", err)
	}
	defer f.Close()

	var file localIndexFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("解码索引文件失败: %w", err)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(file.Vectors))
	for i, v := range file.Vectors {
		scores[i] = scored{idx: i, score: cosineSimilarity(vector, v)}
	}
	sort.Slice(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]types.RetrievedChunk, 0, k)
	for _, s := range scores[:k] {
		results = append(results, types.RetrievedChunk{
			Chunk: file.Chunks[s.idx],
			Score: float32(s.score),
		})
	}
	return results, nil
}

// Delete 实现 VectorStore 接口，对不存在的会话静默成功
func (l *LocalStore) Delete(ctx context.Context, sessionID string) error {
	dir, err := l.sessionDir(sessionID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.RemoveAll(dir)
}

// cosineSimilarity 余弦相似度，零向量返回0
func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
