package agent

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryChatMemoryBasic(t *testing.T) {
	memory := NewInMemoryChatMemory()

	history, err := memory.GetHistory("missing")
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, memory.AddMessage("s1", schema.UserMessage("你好")))
	require.NoError(t, memory.AddMessage("s1", schema.AssistantMessage("你好，有什么可以帮你？", nil)))

	history, err = memory.GetHistory("s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, schema.Assistant, history[1].Role)

	require.NoError(t, memory.ClearHistory("s1"))
	history, err = memory.GetHistory("s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInMemoryChatMemoryRejectsNil(t *testing.T) {
	memory := NewInMemoryChatMemory()
	assert.Error(t, memory.AddMessage("s1", nil))
	assert.Error(t, memory.AddMessages("s1", []*schema.Message{schema.UserMessage("ok"), nil}))
}

func TestRebuildMemoryDeterministic(t *testing.T) {
	turns := []StoredTurn{
		{Role: "user", Content: "这份文档讲了什么？"},
		{Role: "ai", Content: "这是一份关于分布式系统的讲义。"},
		{Role: "user", Content: "第三章呢？"},
	}

	// 同样的落库记录重建出的记忆应当一致，且互不影响
	m1, err := RebuildMemory("s1", turns)
	require.NoError(t, err)
	m2, err := RebuildMemory("s1", turns)
	require.NoError(t, err)

	h1, err := m1.GetHistory("s1")
	require.NoError(t, err)
	h2, err := m2.GetHistory("s1")
	require.NoError(t, err)

	require.Len(t, h1, 3)
	require.Len(t, h2, 3)
	for i := range h1 {
		assert.Equal(t, h1[i].Role, h2[i].Role)
		assert.Equal(t, h1[i].Content, h2[i].Content)
	}
	assert.Equal(t, schema.User, h1[0].Role)
	assert.Equal(t, schema.Assistant, h1[1].Role)
}

func TestRebuildMemoryUnknownRole(t *testing.T) {
	_, err := RebuildMemory("s1", []StoredTurn{{Role: "system", Content: "x"}})
	assert.Error(t, err)
}
