package interview

import (
	"testing"

	"ai-interview-go/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineNextSectionPriority(t *testing.T) {
	state := NewState("s1", "u1", "简历")

	// 初始状态从第一个环节开始
	assert.Equal(t, constants.SectionIntroduction, DetermineNextSection(state))

	// 覆盖环节后按固定优先级推进
	state.CoveredSections[constants.SectionIntroduction] = true
	assert.Equal(t, constants.SectionSkills, DetermineNextSection(state))

	state.CoveredSections[constants.SectionSkills] = true
	state.CoveredSections[constants.SectionProjects] = true
	assert.Equal(t, constants.SectionExperience, DetermineNextSection(state))

	state.CoveredSections[constants.SectionExperience] = true
	assert.Equal(t, constants.FeedbackStage, DetermineNextSection(state))
	assert.True(t, state.Finished())
}

func TestDetermineNextSectionPure(t *testing.T) {
	state := NewState("s1", "u1", "简历")
	before := len(state.CoveredSections)

	DetermineNextSection(state)
	DetermineNextSection(state)

	assert.Equal(t, before, len(state.CoveredSections), "纯函数不应修改状态")
	assert.Empty(t, state.QuestionCounts)
}

func TestRecordQuestionCoversAfterMax(t *testing.T) {
	state := NewState("s1", "u1", "简历")

	state.RecordQuestion(constants.SectionIntroduction, "问题一", 2)
	assert.False(t, state.CoveredSections[constants.SectionIntroduction])
	assert.Equal(t, constants.SectionIntroduction, DetermineNextSection(state))

	state.RecordQuestion(constants.SectionIntroduction, "问题二", 2)
	assert.True(t, state.CoveredSections[constants.SectionIntroduction])
	assert.Equal(t, constants.SectionSkills, DetermineNextSection(state))

	require.Len(t, state.History, 2)
	assert.Equal(t, "问题一", state.History[0].Question)
}

func TestRecordAnswerFillsLatestUnanswered(t *testing.T) {
	state := NewState("s1", "u1", "简历")
	state.RecordQuestion(constants.SectionIntroduction, "问题一", 2)

	require.True(t, state.RecordAnswer("回答一"))
	assert.Equal(t, "回答一", state.History[0].Answer)

	// 没有待回答的提问时返回false
	assert.False(t, state.RecordAnswer("多余的回答"))
}
