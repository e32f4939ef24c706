package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-interview-go/internal/agent"
	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/tracing"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var answerTracer = otel.Tracer("ai-interview-go/engine/answer")

// chatSystemPrompt 检索问答的系统提示。
// 回答只依据检索出的上下文，上下文不含答案时要求模型承认不知道。
const chatSystemPrompt = `你是一个文档问答助手。请只根据下面提供的上下文内容回答用户的问题。
如果上下文中没有足够的信息，就直接说明你无法从文档中找到答案，不要编造内容。

上下文内容：
%s`

// Answer 在指定会话中回答一个问题。
// 历史从数据库重建，问答对只在成功生成回答后才落库。
func (e *Engine) Answer(ctx context.Context, userID, sessionID, query string) (string, error) {
	ctx, span := answerTracer.Start(ctx, "Engine.Answer", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("query", tracing.SafeQuery(query)),
	)

	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("问题不能为空")
	}

	// 归属校验：别人的会话与不存在的会话不可区分
	if e.store != nil && e.store.MySQL != nil {
		if _, err := e.store.MySQL.GetChatSession(ctx, sessionID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperr.NewSessionNotFoundError(sessionID)
			}
			return "", fmt.Errorf("查询会话记录失败: %w", err)
		}
	}

	sess, err := e.idx.Open(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSession)
		return "", err
	}

	history, err := e.rebuildHistory(ctx, sessionID)
	if err != nil {
		return "", err
	}

	retrieved, err := sess.Retrieve(ctx, query, e.cfg.Vector.TopK)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return "", err
	}
	span.SetAttributes(attribute.Int("context.chunks", len(retrieved)))

	messages := composeChatMessages(retrieved, history, query)
	response, err := e.chatModel.Generate(ctx, messages)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", apperr.NewGenerationError(sessionID, fmt.Sprintf("生成回答失败: %v", err))
	}
	answer := strings.TrimSpace(response.Content)
	if answer == "" {
		return "", apperr.NewGenerationError(sessionID, "模型返回了空回答")
	}

	// 只有成功拿到回答才提交这一轮，失败的提问不进入历史
	if e.store != nil && e.store.MySQL != nil {
		if err := e.store.MySQL.AppendChatTurn(ctx, sessionID, query, answer); err != nil {
			return "", err
		}
	}
	return answer, nil
}

// History 按落库顺序返回会话的问答历史
func (e *Engine) History(ctx context.Context, userID, sessionID string) ([]agent.StoredTurn, error) {
	if e.store == nil || e.store.MySQL == nil {
		return nil, fmt.Errorf("数据库未配置，无法查询历史")
	}
	if _, err := e.store.MySQL.GetChatSession(ctx, sessionID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewSessionNotFoundError(sessionID)
		}
		return nil, fmt.Errorf("查询会话记录失败: %w", err)
	}

	messages, err := e.store.MySQL.GetChatMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("查询会话消息失败: %w", err)
	}
	turns := make([]agent.StoredTurn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, agent.StoredTurn{Role: msg.Role, Content: msg.Content})
	}
	return turns, nil
}

// rebuildHistory 从数据库重建会话历史，数据库未配置时历史为空
func (e *Engine) rebuildHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	if e.store == nil || e.store.MySQL == nil {
		return nil, nil
	}
	dbMessages, err := e.store.MySQL.GetChatMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("查询会话消息失败: %w", err)
	}
	turns := make([]agent.StoredTurn, 0, len(dbMessages))
	for _, msg := range dbMessages {
		turns = append(turns, agent.StoredTurn{Role: msg.Role, Content: msg.Content})
	}
	memory, err := agent.RebuildMemory(sessionID, turns)
	if err != nil {
		return nil, fmt.Errorf("重建会话记忆失败: %w", err)
	}
	return memory.GetHistory(sessionID)
}

// composeChatMessages 组装提示：系统提示带上下文，然后是历史，最后是本轮提问
func composeChatMessages(retrieved []types.RetrievedChunk, history []*schema.Message, query string) []*schema.Message {
	var contextText strings.Builder
	for i, rc := range retrieved {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(rc.Chunk.Text)
	}
	if contextText.Len() == 0 {
		contextText.WriteString("（没有检索到相关内容）")
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(fmt.Sprintf(chatSystemPrompt, contextText.String())))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(query))
	return messages
}
