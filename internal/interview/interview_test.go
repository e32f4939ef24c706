package interview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/constants"
	"ai-interview-go/internal/embedding"
	"ai-interview-go/internal/index"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试用LLM模型模拟器，按调用顺序返回预设响应
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if m.calls >= len(m.responses) {
		return nil, errors.New("没有更多预设响应")
	}
	resp := m.responses[m.calls]
	m.calls++
	return &schema.Message{Role: schema.Assistant, Content: resp}, nil
}

func (m *scriptedModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *scriptedModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func questionJSON(i int) string {
	return fmt.Sprintf(`{"question": "面试问题%d"}`, i)
}

func newTestManager(t *testing.T, chatModel model.ToolCallingChatModel) (*Manager, *index.Index) {
	t.Helper()
	store, err := index.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	idx := index.NewIndex(store, embedding.NewHashEmbedder(64), 4)

	cfg := &config.InterviewConfig{MaxQuestionsPerSection: 2, ContextTopK: 3}
	m, err := NewManager(cfg, idx, chatModel, NewMemoryStore())
	require.NoError(t, err)
	return m, idx
}

func buildInterviewIndex(t *testing.T, idx *index.Index, sessionID string) {
	t.Helper()
	chunks := []types.Chunk{
		{Text: "张三，三年Go后端开发经验，熟悉分布式系统", Seq: 0},
		{Text: "主导过订单系统的重构，QPS提升三倍", Seq: 1},
		{Text: "熟悉MySQL、Redis、Kafka等中间件", Seq: 2},
	}
	require.NoError(t, idx.Build(context.Background(), sessionID, chunks))
}

// 完整跑一场面试：4个环节各2题共8题，随后进入反馈终态
func TestFullInterviewRun(t *testing.T) {
	responses := make([]string, 0, 8)
	for i := 1; i <= 8; i++ {
		responses = append(responses, questionJSON(i))
	}
	mock := &scriptedModel{responses: responses}
	m, idx := newTestManager(t, mock)
	buildInterviewIndex(t, idx, "iv1")
	ctx := context.Background()

	require.NoError(t, m.Begin(ctx, "iv1", "u1", "张三的简历全文"))

	expectedSections := []string{
		constants.SectionIntroduction, constants.SectionIntroduction,
		constants.SectionSkills, constants.SectionSkills,
		constants.SectionProjects, constants.SectionProjects,
		constants.SectionExperience, constants.SectionExperience,
	}

	result, err := m.NextQuestion(ctx, "u1", "iv1")
	require.NoError(t, err)
	assert.Equal(t, expectedSections[0], result.Section)
	assert.Equal(t, "面试问题1", result.Question)

	for i := 1; i < 8; i++ {
		result, err = m.SubmitAnswer(ctx, "u1", "iv1", fmt.Sprintf("回答%d", i))
		require.NoError(t, err)
		assert.Equal(t, expectedSections[i], result.Section, "第%d题应属于环节%s", i+1, expectedSections[i])
		assert.False(t, result.Finished)
	}

	// 第8题回答后没有新问题了
	result, err = m.SubmitAnswer(ctx, "u1", "iv1", "回答8")
	require.NoError(t, err)
	assert.True(t, result.Finished)
	assert.Equal(t, constants.FeedbackStage, result.Section)
}

func TestFeedbackAfterFinish(t *testing.T) {
	responses := make([]string, 0, 10)
	for i := 1; i <= 8; i++ {
		responses = append(responses, questionJSON(i))
	}
	responses = append(responses,
		`{"technical_knowledge_rating": 4, "technical_tips": ["回答中多给出具体数据", "补充对一致性协议的理解"]}`,
		`{"communication_skills_rating": 3, "communication_tips": ["回答前先给结论"]}`,
	)
	mock := &scriptedModel{responses: responses}
	m, idx := newTestManager(t, mock)
	buildInterviewIndex(t, idx, "iv2")
	ctx := context.Background()

	require.NoError(t, m.Begin(ctx, "iv2", "u1", "简历"))
	_, err := m.NextQuestion(ctx, "u1", "iv2")
	require.NoError(t, err)
	for i := 1; i <= 8; i++ {
		_, err = m.SubmitAnswer(ctx, "u1", "iv2", fmt.Sprintf("回答%d", i))
		require.NoError(t, err)
	}

	report, err := m.Feedback(ctx, "u1", "iv2")
	require.NoError(t, err)
	assert.Equal(t, 4, report.Technical.TechnicalKnowledgeRating)
	assert.Len(t, report.Technical.TechnicalTips, 2)
	assert.Equal(t, 3, report.HR.CommunicationSkillsRating)
	assert.NotEmpty(t, report.HR.CommunicationTips)

	// 反馈生成后索引与状态都被清理
	_, err = idx.Open(ctx, "iv2")
	assert.True(t, errors.Is(err, apperr.ErrSessionNotFound))
	_, err = m.NextQuestion(ctx, "u1", "iv2")
	assert.True(t, errors.Is(err, apperr.ErrSessionNotFound))
}

func TestFeedbackBeforeFinishRejected(t *testing.T) {
	mock := &scriptedModel{responses: []string{questionJSON(1)}}
	m, idx := newTestManager(t, mock)
	buildInterviewIndex(t, idx, "iv3")
	ctx := context.Background()

	require.NoError(t, m.Begin(ctx, "iv3", "u1", "简历"))
	_, err := m.NextQuestion(ctx, "u1", "iv3")
	require.NoError(t, err)

	_, err = m.Feedback(ctx, "u1", "iv3")
	assert.True(t, errors.Is(err, ErrInterviewNotFinished))
}

func TestFeedbackInvalidRating(t *testing.T) {
	responses := make([]string, 0, 9)
	for i := 1; i <= 8; i++ {
		responses = append(responses, questionJSON(i))
	}
	// 评分超出范围
	responses = append(responses, `{"technical_knowledge_rating": 9, "technical_tips": ["建议"]}`)
	mock := &scriptedModel{responses: responses}
	m, idx := newTestManager(t, mock)
	buildInterviewIndex(t, idx, "iv4")
	ctx := context.Background()

	require.NoError(t, m.Begin(ctx, "iv4", "u1", "简历"))
	_, err := m.NextQuestion(ctx, "u1", "iv4")
	require.NoError(t, err)
	for i := 1; i <= 8; i++ {
		_, err = m.SubmitAnswer(ctx, "u1", "iv4", fmt.Sprintf("回答%d", i))
		require.NoError(t, err)
	}

	_, err = m.Feedback(ctx, "u1", "iv4")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGenerationFailed))

	// 生成失败不清理，索引仍在，可以重试
	_, err = idx.Open(ctx, "iv4")
	assert.NoError(t, err)
}

func TestOwnershipIndistinguishable(t *testing.T) {
	mock := &scriptedModel{responses: []string{questionJSON(1)}}
	m, idx := newTestManager(t, mock)
	buildInterviewIndex(t, idx, "iv5")
	ctx := context.Background()

	require.NoError(t, m.Begin(ctx, "iv5", "u1", "简历"))

	// 别人的会话与不存在的会话返回同样的错误
	_, errOther := m.NextQuestion(ctx, "u2", "iv5")
	_, errMissing := m.NextQuestion(ctx, "u1", "missing")
	assert.True(t, errors.Is(errOther, apperr.ErrSessionNotFound))
	assert.True(t, errors.Is(errMissing, apperr.ErrSessionNotFound))
}

func TestSubmitAnswerWithoutQuestion(t *testing.T) {
	mock := &scriptedModel{}
	m, idx := newTestManager(t, mock)
	buildInterviewIndex(t, idx, "iv6")
	ctx := context.Background()

	require.NoError(t, m.Begin(ctx, "iv6", "u1", "简历"))
	_, err := m.SubmitAnswer(ctx, "u1", "iv6", "未经提问的回答")
	assert.Error(t, err)
}
