package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/storage"
)

// Store 面试状态存储接口。
// 状态整体读整体写，不存在部分更新。
type Store interface {
	// Save 保存会话状态
	Save(ctx context.Context, state *State) error

	// Load 读取会话状态，不存在时返回SessionNotFound
	Load(ctx context.Context, sessionID string) (*State, error)

	// Delete 删除会话状态，不存在时静默成功
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore Store的内存实现，单进程部署与测试用
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存状态存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

// Save 实现 Store 接口。存序列化字节，读写互不共享内存。
func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("状态与会话ID不能为空")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化面试状态失败: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.SessionID] = data
	return nil
}

// Load 实现 Store 接口
func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*State, error) {
	m.mu.RLock()
	data, ok := m.states[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.NewSessionNotFoundError(sessionID)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("反序列化面试状态失败: %w", err)
	}
	return &state, nil
}

// Delete 实现 Store 接口
func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

// RedisStore Store的Redis实现，多实例部署时共享面试状态
type RedisStore struct {
	redis *storage.Redis
	ttl   time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 创建Redis状态存储，ttl<=0时默认2小时
func NewRedisStore(redis *storage.Redis, ttl time.Duration) (*RedisStore, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis客户端不能为空")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{redis: redis, ttl: ttl}, nil
}

// Save 实现 Store 接口
func (r *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("状态与会话ID不能为空")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化面试状态失败: %w", err)
	}
	return r.redis.SaveInterviewState(ctx, state.SessionID, data, r.ttl)
}

// Load 实现 Store 接口
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*State, error) {
	data, err := r.redis.LoadInterviewState(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NewSessionNotFoundError(sessionID)
		}
		return nil, fmt.Errorf("读取面试状态失败: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("反序列化面试状态失败: %w", err)
	}
	return &state, nil
}

// Delete 实现 Store 接口
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.redis.DeleteInterviewState(ctx, sessionID)
}
