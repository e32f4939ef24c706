package constants

import "time"

const (
	// 会话来源类型
	SourceTypePDF     = "pdf"
	SourceTypeYouTube = "youtube"
	SourceTypeGitHub  = "github"
	SourceTypeResume  = "resume"

	// 面试环节，按固定优先级排列
	SectionIntroduction = "introduction"
	SectionSkills       = "skills"
	SectionProjects     = "projects"
	SectionExperience   = "experience"
	// FeedbackStage 所有环节覆盖完毕后的终态
	FeedbackStage = "feedback_stage"

	// 对话角色
	RoleUser = "user"
	RoleAI   = "ai"

	// DefaultLLMTimeout 每次模型调用的固定超时预算
	DefaultLLMTimeout = 60 * time.Second
)

// InterviewSections 面试环节的固定优先级顺序
var InterviewSections = []string{
	SectionIntroduction,
	SectionSkills,
	SectionProjects,
	SectionExperience,
}
