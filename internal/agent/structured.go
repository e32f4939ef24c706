package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-interview-go/internal/apperr"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"
)

// structuredInstructions 附加在最后一条用户消息之后的输出约束。
// 模型必须只输出一个符合schema的JSON对象，违反约束的输出直接判失败。
const structuredInstructions = `

你的回答必须是一个JSON对象，且只包含这个JSON对象，不要输出任何其他文字。
JSON对象必须严格符合以下JSON Schema：

%s`

// GenerateStructured 调用模型并把输出解析为指定类型。
// schema校验失败或输出不是合法JSON时返回GenerationFailed，不做重试，
// 由调用方决定是否把整次操作报告为失败。
func GenerateStructured[T any](ctx context.Context, chatModel model.ToolCallingChatModel, sessionID string, messages []*schema.Message) (*T, error) {
	js, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("推导输出schema失败: %w", err)
	}
	schemaJSON, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化输出schema失败: %w", err)
	}

	prompt := append([]*schema.Message{}, messages...)
	if len(prompt) == 0 {
		return nil, fmt.Errorf("消息列表不能为空")
	}
	last := prompt[len(prompt)-1]
	prompt[len(prompt)-1] = &schema.Message{
		Role:    last.Role,
		Content: last.Content + fmt.Sprintf(structuredInstructions, string(schemaJSON)),
	}

	response, err := chatModel.Generate(ctx, prompt)
	if err != nil {
		return nil, apperr.NewGenerationError(sessionID, fmt.Sprintf("模型调用失败: %v", err))
	}

	raw := extractJSON(response.Content)
	if raw == "" {
		return nil, apperr.NewGenerationError(sessionID, "模型输出中没有JSON对象")
	}

	var instance map[string]any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		return nil, apperr.NewGenerationError(sessionID, fmt.Sprintf("模型输出不是合法JSON: %v", err))
	}

	resolved, err := js.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("解析输出schema失败: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, apperr.NewGenerationError(sessionID, fmt.Sprintf("模型输出不符合schema: %v", err))
	}

	var result T
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, apperr.NewGenerationError(sessionID, fmt.Sprintf("反序列化模型输出失败: %v", err))
	}
	return &result, nil
}

// extractJSON 从模型输出中取出JSON对象。
// 容忍```json围栏与前后缀文字，取第一个 { 到最后一个 } 之间的内容。
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
