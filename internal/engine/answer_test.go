package engine

import (
	"context"
	"errors"
	"testing"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/embedding"
	"ai-interview-go/internal/index"
	"ai-interview-go/internal/parser"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试用LLM模型模拟器
type mockChatModel struct {
	response     string
	err          error
	lastMessages []*schema.Message
}

func (m *mockChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.lastMessages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.response}, nil
}

func (m *mockChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *mockChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func (m *mockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func newTestEngine(t *testing.T, chatModel model.ToolCallingChatModel) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Vector.TopK = 2

	store, err := index.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	idx := index.NewIndex(store, embedding.NewHashEmbedder(64), cfg.Vector.TopK)

	splitter, err := parser.NewSplitter(parser.SplitterConfig{ChunkSize: 200, ChunkOverlap: 20})
	require.NoError(t, err)

	e, err := New(cfg, idx, splitter, nil, nil, chatModel)
	require.NoError(t, err)
	return e
}

func buildSession(t *testing.T, e *Engine, sessionID string) {
	t.Helper()
	chunks := []types.Chunk{
		{Text: "raft协议通过领导者选举保证日志一致性", Seq: 0},
		{Text: "kafka通过分区实现消费端的水平扩展", Seq: 1},
	}
	require.NoError(t, e.Index().Build(context.Background(), sessionID, chunks))
}

func TestAnswerHappyPath(t *testing.T) {
	mock := &mockChatModel{response: "raft通过领导者选举保证一致性。"}
	e := newTestEngine(t, mock)
	buildSession(t, e, "sess_chat")

	answer, err := e.Answer(context.Background(), "u1", "sess_chat", "raft是如何保证一致性的？")
	require.NoError(t, err)
	assert.Equal(t, "raft通过领导者选举保证一致性。", answer)

	// 第一条是带上下文的系统提示，最后一条是本轮提问
	require.GreaterOrEqual(t, len(mock.lastMessages), 2)
	assert.Equal(t, schema.System, mock.lastMessages[0].Role)
	assert.Contains(t, mock.lastMessages[0].Content, "raft")
	last := mock.lastMessages[len(mock.lastMessages)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.Contains(t, last.Content, "raft是如何保证一致性的")
}

func TestAnswerUnknownSession(t *testing.T) {
	e := newTestEngine(t, &mockChatModel{response: "ok"})

	_, err := e.Answer(context.Background(), "u1", "no_such_session", "问题")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrSessionNotFound))
}

func TestAnswerGenerationFailure(t *testing.T) {
	mock := &mockChatModel{err: errors.New("上游超时")}
	e := newTestEngine(t, mock)
	buildSession(t, e, "sess_fail")

	_, err := e.Answer(context.Background(), "u1", "sess_fail", "问题")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGenerationFailed))
}

func TestAnswerEmptyQuery(t *testing.T) {
	e := newTestEngine(t, &mockChatModel{response: "ok"})
	buildSession(t, e, "sess_empty_q")

	_, err := e.Answer(context.Background(), "u1", "sess_empty_q", "   ")
	assert.Error(t, err)
}

func TestComposeChatMessagesOrdering(t *testing.T) {
	retrieved := []types.RetrievedChunk{
		{Chunk: types.Chunk{Text: "上下文A"}},
		{Chunk: types.Chunk{Text: "上下文B"}},
	}
	history := []*schema.Message{
		schema.UserMessage("之前的问题"),
		schema.AssistantMessage("之前的回答", nil),
	}

	messages := composeChatMessages(retrieved, history, "新问题")
	require.Len(t, messages, 4)
	assert.Equal(t, schema.System, messages[0].Role)
	assert.Contains(t, messages[0].Content, "上下文A")
	assert.Contains(t, messages[0].Content, "上下文B")
	assert.Equal(t, "之前的问题", messages[1].Content)
	assert.Equal(t, "之前的回答", messages[2].Content)
	assert.Equal(t, "新问题", messages[3].Content)
}

func TestComposeChatMessagesNoContext(t *testing.T) {
	messages := composeChatMessages(nil, nil, "问题")
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "没有检索到相关内容")
}
