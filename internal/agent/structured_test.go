package agent

import (
	"context"
	"errors"
	"testing"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试用LLM模型模拟器
type MockLLMModel struct {
	// 固定的模拟响应
	mockResponse string
	// 用于测试的错误
	Err error
	// 记录收到的消息，便于断言提示词内容
	LastMessages []*schema.Message
}

// Generate 实现model.ChatModel接口
func (m *MockLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.LastMessages = messages
	if m.Err != nil {
		return nil, m.Err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.mockResponse}, nil
}

// Stream 实现model.ChatModel接口
func (m *MockLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

// BindTools 实现model.ChatModel接口
func (m *MockLLMModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MockLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestGenerateStructuredValidJSON(t *testing.T) {
	mock := &MockLLMModel{mockResponse: `{"question": "请介绍一下你自己"}`}

	result, err := GenerateStructured[types.InterviewQuestion](context.Background(), mock, "sess1",
		[]*schema.Message{schema.UserMessage("生成一个面试问题")})
	require.NoError(t, err)
	assert.Equal(t, "请介绍一下你自己", result.Question)

	// schema约束应当被注入到最后一条消息
	require.NotEmpty(t, mock.LastMessages)
	last := mock.LastMessages[len(mock.LastMessages)-1]
	assert.Contains(t, last.Content, "JSON Schema")
}

func TestGenerateStructuredFencedJSON(t *testing.T) {
	mock := &MockLLMModel{mockResponse: "好的，以下是问题：\n```json\n{\"question\": \"谈谈你的项目经历\"}\n```"}

	result, err := GenerateStructured[types.InterviewQuestion](context.Background(), mock, "sess1",
		[]*schema.Message{schema.UserMessage("生成一个面试问题")})
	require.NoError(t, err)
	assert.Equal(t, "谈谈你的项目经历", result.Question)
}

func TestGenerateStructuredInvalidOutput(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"纯文本", "我不会输出JSON"},
		{"残缺JSON", `{"question": "未闭合`},
		{"类型不符", `{"question": 42}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &MockLLMModel{mockResponse: tc.response}
			_, err := GenerateStructured[types.InterviewQuestion](context.Background(), mock, "sess1",
				[]*schema.Message{schema.UserMessage("生成一个面试问题")})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrGenerationFailed))
		})
	}
}

func TestGenerateStructuredModelError(t *testing.T) {
	mock := &MockLLMModel{Err: errors.New("上游超时")}
	_, err := GenerateStructured[types.InterviewQuestion](context.Background(), mock, "sess1",
		[]*schema.Message{schema.UserMessage("生成一个面试问题")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGenerationFailed))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, extractJSON("前缀 {\"a\":1} 后缀"))
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "", extractJSON("没有对象"))
}
