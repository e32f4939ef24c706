package agent

import (
	"fmt"
	"sync"

	"ai-interview-go/internal/constants"

	"github.com/cloudwego/eino/schema"
)

// ChatMemory 聊天记忆存储接口
type ChatMemory interface {
	// GetHistory 获取指定会话的聊天历史。
	// 会话不存在时返回空切片和nil错误。
	GetHistory(sessionID string) ([]*schema.Message, error)

	// AddMessage 向指定会话追加一条消息
	AddMessage(sessionID string, message *schema.Message) error

	// AddMessages 向指定会话批量追加消息
	AddMessages(sessionID string, messages []*schema.Message) error

	// ClearHistory 清除指定会话的全部历史，会话不存在时静默成功
	ClearHistory(sessionID string) error
}

// InMemoryChatMemory ChatMemory的内存实现。
// 不做持久化，历史的权威副本在MySQL，每次请求从库里重建。
type InMemoryChatMemory struct {
	mu        sync.RWMutex
	histories map[string][]*schema.Message
}

var _ ChatMemory = (*InMemoryChatMemory)(nil)

// NewInMemoryChatMemory 创建内存聊天记忆
func NewInMemoryChatMemory() *InMemoryChatMemory {
	return &InMemoryChatMemory{
		histories: make(map[string][]*schema.Message),
	}
}

// GetHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) GetHistory(sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.histories[sessionID]
	if !ok {
		return []*schema.Message{}, nil
	}
	// 返回副本，防止调用方修改内部切片
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AddMessage 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessage(sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("不能向会话 %s 添加空消息", sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[sessionID] = append(m.histories[sessionID], message)
	return nil
}

// AddMessages 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessages(sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("不能向会话 %s 批量添加空消息", sessionID)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[sessionID] = append(m.histories[sessionID], messages...)
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) ClearHistory(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.histories, sessionID)
	return nil
}

// StoredTurn 已落库的一条消息，用于从数据库重建记忆
type StoredTurn struct {
	Role    string
	Content string
}

// RebuildMemory 按落库顺序把历史消息灌入一个全新的记忆。
// 同样的输入总是得到同样的记忆内容，重复调用互不影响。
func RebuildMemory(sessionID string, turns []StoredTurn) (*InMemoryChatMemory, error) {
	memory := NewInMemoryChatMemory()
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case constants.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case constants.RoleAI:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		default:
			return nil, fmt.Errorf("未知的消息角色: %q", turn.Role)
		}
	}
	if err := memory.AddMessages(sessionID, messages); err != nil {
		return nil, err
	}
	return memory, nil
}
