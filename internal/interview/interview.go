package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-interview-go/internal/agent"
	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/constants"
	"ai-interview-go/internal/index"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/storage/models"
	"ai-interview-go/internal/tracing"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var interviewTracer = otel.Tracer("ai-interview-go/interview")

// ErrInterviewNotFinished 面试尚未问完全部环节，不能生成反馈
var ErrInterviewNotFinished = errors.New("面试尚未结束")

// sectionQueries 每个环节出题前的检索查询
var sectionQueries = map[string]string{
	constants.SectionIntroduction: "候选人的基本信息、教育背景和自我介绍",
	constants.SectionSkills:       "候选人掌握的技术栈、编程语言和工具",
	constants.SectionProjects:     "候选人做过的项目、承担的角色和技术难点",
	constants.SectionExperience:   "候选人的工作经历、实习经历和职责",
}

// sectionTopics 提示词中对各环节的描述
var sectionTopics = map[string]string{
	constants.SectionIntroduction: "自我介绍与基本背景",
	constants.SectionSkills:       "技术能力与技术栈",
	constants.SectionProjects:     "项目经历与技术细节",
	constants.SectionExperience:   "工作与实习经历",
}

// interviewerSystemPrompt 面试官角色的系统提示
const interviewerSystemPrompt = `你是一位资深的技术面试官，正在对一位候选人进行模拟面试。
你的提问要具体、专业，并且紧扣候选人的简历和资料。每次只提一个问题。

候选人的简历摘录：
%s

与当前环节相关的资料片段：
%s`

// QuestionResult 一次出题的结果
type QuestionResult struct {
	SessionID string `json:"session_id"`
	Section   string `json:"section"`
	Question  string `json:"question"`
	// Finished 为true时表示全部环节已问完，没有新问题
	Finished bool `json:"finished"`
}

// Report 面试反馈报告
type Report struct {
	SessionID string                  `json:"session_id"`
	Technical types.TechnicalFeedback `json:"technical"`
	HR        types.HRFeedback        `json:"hr"`
}

// Manager 模拟面试流程：按固定环节出题、记录问答、生成反馈。
// 出完反馈后会话的索引与状态全部清理，不可再提问。
type Manager struct {
	cfg       *config.InterviewConfig
	idx       *index.Index
	chatModel model.ToolCallingChatModel
	store     Store
	db        *storage.MySQL
}

// ManagerOption Manager构造选项
type ManagerOption func(*Manager)

// WithDatabase 注入MySQL，问答与反馈会同步落库
func WithDatabase(db *storage.MySQL) ManagerOption {
	return func(m *Manager) {
		m.db = db
	}
}

// NewManager 创建面试管理器
func NewManager(cfg *config.InterviewConfig, idx *index.Index, chatModel model.ToolCallingChatModel, store Store, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("面试配置不能为空")
	}
	if idx == nil || chatModel == nil || store == nil {
		return nil, fmt.Errorf("索引、模型与状态存储不能为空")
	}
	m := &Manager{cfg: cfg, idx: idx, chatModel: chatModel, store: store}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// maxQuestions 每个环节的问题上限
func (m *Manager) maxQuestions() int {
	if m.cfg.MaxQuestionsPerSection > 0 {
		return m.cfg.MaxQuestionsPerSection
	}
	return 2
}

// Begin 为一个已完成简历摄取的会话初始化面试状态
func (m *Manager) Begin(ctx context.Context, sessionID, userID, resumeText string) error {
	state := NewState(sessionID, userID, resumeText)
	return m.store.Save(ctx, state)
}

// NextQuestion 生成下一个面试问题。
// 全部环节覆盖后返回Finished=true，状态不再变化。
func (m *Manager) NextQuestion(ctx context.Context, userID, sessionID string) (*QuestionResult, error) {
	ctx, span := interviewTracer.Start(ctx, "Interview.NextQuestion", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	state, err := m.loadOwned(ctx, userID, sessionID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSession)
		return nil, err
	}

	section := DetermineNextSection(state)
	span.SetAttributes(attribute.String("interview.section", section))
	if section == constants.FeedbackStage {
		return &QuestionResult{SessionID: sessionID, Section: section, Finished: true}, nil
	}

	question, err := m.generateQuestion(ctx, state, section)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	// 出题成功才推进状态，失败的出题不消耗环节配额
	state.RecordQuestion(section, question, m.maxQuestions())
	if err := m.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("保存面试状态失败: %w", err)
	}
	m.persistQuestion(ctx, sessionID, section, question)

	return &QuestionResult{SessionID: sessionID, Section: section, Question: question}, nil
}

// SubmitAnswer 记录候选人的回答并给出下一个问题
func (m *Manager) SubmitAnswer(ctx context.Context, userID, sessionID, answer string) (*QuestionResult, error) {
	ctx, span := interviewTracer.Start(ctx, "Interview.SubmitAnswer", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("回答不能为空")
	}

	state, err := m.loadOwned(ctx, userID, sessionID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSession)
		return nil, err
	}

	if !state.RecordAnswer(answer) {
		return nil, fmt.Errorf("当前没有待回答的问题")
	}
	if err := m.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("保存面试状态失败: %w", err)
	}
	m.persistAnswer(ctx, sessionID, answer)

	return m.NextQuestion(ctx, userID, sessionID)
}

// Feedback 在全部环节问完后生成反馈报告，随后清理会话的索引与状态。
// 反馈生成失败时不清理，可以重试。
func (m *Manager) Feedback(ctx context.Context, userID, sessionID string) (*Report, error) {
	ctx, span := interviewTracer.Start(ctx, "Interview.Feedback", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	state, err := m.loadOwned(ctx, userID, sessionID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSession)
		return nil, err
	}
	if !state.Finished() {
		return nil, ErrInterviewNotFinished
	}

	transcript := buildTranscript(state.History)

	technical, err := agent.GenerateStructured[types.TechnicalFeedback](ctx, m.chatModel, sessionID,
		feedbackMessages(transcript, "请从技术能力的角度评估候选人的表现。"))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}
	if err := validateRating(technical.TechnicalKnowledgeRating, technical.TechnicalTips); err != nil {
		return nil, apperr.NewGenerationError(sessionID, err.Error())
	}

	hr, err := agent.GenerateStructured[types.HRFeedback](ctx, m.chatModel, sessionID,
		feedbackMessages(transcript, "请从沟通表达的角度评估候选人的表现。"))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}
	if err := validateRating(hr.CommunicationSkillsRating, hr.CommunicationTips); err != nil {
		return nil, apperr.NewGenerationError(sessionID, err.Error())
	}

	m.persistFeedback(ctx, sessionID, technical, hr)
	m.cleanup(ctx, sessionID)

	return &Report{SessionID: sessionID, Technical: *technical, HR: *hr}, nil
}

// loadOwned 读取状态并校验归属，别人的会话与不存在的会话不可区分
func (m *Manager) loadOwned(ctx context.Context, userID, sessionID string) (*State, error) {
	state, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.UserID != userID {
		return nil, apperr.NewSessionNotFoundError(sessionID)
	}
	return state, nil
}

// generateQuestion 检索相关资料并让模型出一道题
func (m *Manager) generateQuestion(ctx context.Context, state *State, section string) (string, error) {
	sess, err := m.idx.Open(ctx, state.SessionID)
	if err != nil {
		return "", err
	}

	topK := m.cfg.ContextTopK
	if topK <= 0 {
		topK = 3
	}
	retrieved, err := sess.Retrieve(ctx, sectionQueries[section], topK)
	if err != nil {
		return "", err
	}

	var contextText strings.Builder
	for i, rc := range retrieved {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(rc.Chunk.Text)
	}

	messages := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(interviewerSystemPrompt,
			truncateRunes(state.ResumeText, 2000), contextText.String())),
	}
	for _, turn := range recentTurns(state.History, 6) {
		messages = append(messages, schema.AssistantMessage(turn.Question, nil))
		if turn.Answer != "" {
			messages = append(messages, schema.UserMessage(turn.Answer))
		}
	}
	messages = append(messages, schema.UserMessage(fmt.Sprintf(
		"现在进入「%s」环节，请根据候选人的资料提出一个新的面试问题，不要重复之前问过的问题。",
		sectionTopics[section])))

	result, err := agent.GenerateStructured[types.InterviewQuestion](ctx, m.chatModel, state.SessionID, messages)
	if err != nil {
		return "", err
	}
	question := strings.TrimSpace(result.Question)
	if question == "" {
		return "", apperr.NewGenerationError(state.SessionID, "模型返回了空问题")
	}
	return question, nil
}

// cleanup 面试结束后的清理：索引与状态都删掉，失败只记警告
func (m *Manager) cleanup(ctx context.Context, sessionID string) {
	if err := m.idx.Delete(ctx, sessionID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("删除面试会话索引失败")
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("删除面试会话状态失败")
	}
}

// persistQuestion 把提问落库，失败只记警告
func (m *Manager) persistQuestion(ctx context.Context, sessionID, section, question string) {
	if m.db == nil {
		return
	}
	if _, err := m.db.AppendInterviewQuestion(ctx, sessionID, section, question); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("落库面试提问失败")
	}
}

// persistAnswer 把回答落库，失败只记警告
func (m *Manager) persistAnswer(ctx context.Context, sessionID, answer string) {
	if m.db == nil {
		return
	}
	if err := m.db.FillInterviewAnswer(ctx, sessionID, answer); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("落库面试回答失败")
	}
}

// persistFeedback 把反馈报告落库并标记会话完成，失败只记警告
func (m *Manager) persistFeedback(ctx context.Context, sessionID string, technical *types.TechnicalFeedback, hr *types.HRFeedback) {
	if m.db == nil {
		return
	}
	techTips, err := models.StringsToJSON(technical.TechnicalTips)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("序列化技术建议失败")
	}
	commTips, err := models.StringsToJSON(hr.CommunicationTips)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("序列化沟通建议失败")
	}
	feedback := &models.InterviewFeedback{
		SessionID:                 sessionID,
		TechnicalKnowledgeRating:  technical.TechnicalKnowledgeRating,
		TechnicalTipsJSON:         techTips,
		CommunicationSkillsRating: hr.CommunicationSkillsRating,
		CommunicationTipsJSON:     commTips,
	}
	if err := m.db.SaveInterviewFeedback(ctx, feedback); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("落库面试反馈失败")
	}
	if err := m.db.UpdateInterviewStatus(ctx, sessionID, "COMPLETED"); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("更新面试会话状态失败")
	}
}

// validateRating 评分必须在1到5之间且建议非空
func validateRating(rating int, tips []string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("评分 %d 超出1到5的范围", rating)
	}
	if len(tips) == 0 {
		return fmt.Errorf("建议列表不能为空")
	}
	return nil
}

// buildTranscript 把问答历史拼成反馈评估用的文字记录
func buildTranscript(history []Turn) string {
	var b strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&b, "【%s】面试官：%s\n候选人：%s\n\n", sectionTopics[turn.Section], turn.Question, turn.Answer)
	}
	return b.String()
}

// feedbackMessages 组装反馈评估的提示
func feedbackMessages(transcript, instruction string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage("你是一位经验丰富的面试评估专家，请根据面试记录给出客观、可执行的反馈。"),
		schema.UserMessage(fmt.Sprintf("以下是完整的面试记录：\n\n%s\n%s", transcript, instruction)),
	}
}

// recentTurns 取最近的n轮问答
func recentTurns(history []Turn, n int) []Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// truncateRunes 按字符数截断文本
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
