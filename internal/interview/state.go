package interview

import (
	"ai-interview-go/internal/constants"
)

// Turn 一轮面试问答，提问时记录所处环节
type Turn struct {
	Section  string `json:"section"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// State 一场面试的全部可变状态。
// 状态在每次操作后整体保存，序列化格式为JSON，可存内存或Redis。
type State struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	ResumeText string `json:"resume_text"`

	// QuestionCounts 每个环节已提问的数量
	QuestionCounts map[string]int `json:"question_counts"`
	// CoveredSections 已问满的环节
	CoveredSections map[string]bool `json:"covered_sections"`
	// History 按时间顺序的问答记录
	History []Turn `json:"history"`
}

// NewState 创建一场新面试的初始状态
func NewState(sessionID, userID, resumeText string) *State {
	return &State{
		SessionID:       sessionID,
		UserID:          userID,
		ResumeText:      resumeText,
		QuestionCounts:  make(map[string]int),
		CoveredSections: make(map[string]bool),
	}
}

// DetermineNextSection 按固定优先级返回第一个未覆盖的环节。
// 全部覆盖后返回反馈终态。纯函数，不修改状态。
func DetermineNextSection(state *State) string {
	for _, section := range constants.InterviewSections {
		if !state.CoveredSections[section] {
			return section
		}
	}
	return constants.FeedbackStage
}

// RecordQuestion 记录一次提问：计数加一，问满后标记环节已覆盖
func (s *State) RecordQuestion(section, question string, maxPerSection int) {
	if s.QuestionCounts == nil {
		s.QuestionCounts = make(map[string]int)
	}
	if s.CoveredSections == nil {
		s.CoveredSections = make(map[string]bool)
	}
	s.QuestionCounts[section]++
	if s.QuestionCounts[section] >= maxPerSection {
		s.CoveredSections[section] = true
	}
	s.History = append(s.History, Turn{Section: section, Question: question})
}

// RecordAnswer 把回答补到最近一个未回答的提问上，没有待回答的提问时返回false
func (s *State) RecordAnswer(answer string) bool {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Answer == "" {
			s.History[i].Answer = answer
			return true
		}
	}
	return false
}

// Finished 是否已进入反馈终态
func (s *State) Finished() bool {
	return DetermineNextSection(s) == constants.FeedbackStage
}
