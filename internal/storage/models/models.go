package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ChatSession 文档对话会话主表，一个会话对应一个已建立的向量索引
type ChatSession struct {
	SessionID   string    `gorm:"type:char(36);primaryKey"`
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_cs_user_id"`
	SourceType  string    `gorm:"type:varchar(20);not null"`
	SourceName  string    `gorm:"type:varchar(512)"`
	ChunkCount  int       `gorm:"not null;default:0"`
	ArchivePath string    `gorm:"type:varchar(1024)"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 对话消息表，一问一答各占一行，按创建顺序即为对话顺序
type ChatMessage struct {
	MessageID uint64    `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"type:char(36);not null;index:idx_cm_session_created,priority:1"`
	Role      string    `gorm:"type:varchar(10);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_cm_session_created,priority:2"`

	ChatSession *ChatSession `gorm:"foreignKey:SessionID;references:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// InterviewSession 模拟面试会话表
type InterviewSession struct {
	SessionID       string         `gorm:"type:char(36);primaryKey"`
	UserID          string         `gorm:"type:varchar(64);not null;index:idx_is_user_id"`
	ResumeFilename  string         `gorm:"type:varchar(255)"`
	ResumeMD5       string         `gorm:"type:char(32);index:idx_is_resume_md5"`
	ArchivePath     string         `gorm:"type:varchar(1024)"`
	GithubReposJSON datatypes.JSON `gorm:"type:json"`
	Status          string         `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_is_status"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (InterviewSession) TableName() string {
	return "interview_sessions"
}

// InterviewConversation 面试问答记录表，保留提问时所处的环节
type InterviewConversation struct {
	TurnID    uint64    `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"type:char(36);not null;index:idx_ic_session_created,priority:1"`
	Section   string    `gorm:"type:varchar(20);not null"`
	Question  string    `gorm:"type:text;not null"`
	Answer    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_ic_session_created,priority:2"`

	InterviewSession *InterviewSession `gorm:"foreignKey:SessionID;references:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (InterviewConversation) TableName() string {
	return "interview_conversations"
}

// InterviewFeedback 面试反馈报告表，一个会话最多一条
type InterviewFeedback struct {
	FeedbackID                uint64         `gorm:"primaryKey;autoIncrement"`
	SessionID                 string         `gorm:"type:char(36);not null;uniqueIndex:uq_if_session_id"`
	TechnicalKnowledgeRating  int            `gorm:"type:int;not null"`
	TechnicalTipsJSON         datatypes.JSON `gorm:"type:json"`
	CommunicationSkillsRating int            `gorm:"type:int;not null"`
	CommunicationTipsJSON     datatypes.JSON `gorm:"type:json"`
	CreatedAt                 time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	InterviewSession *InterviewSession `gorm:"foreignKey:SessionID;references:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (InterviewFeedback) TableName() string {
	return "interview_feedbacks"
}

// StringsToJSON 把字符串切片序列化为datatypes.JSON
func StringsToJSON(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	bytes, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToStrings 把datatypes.JSON反序列化为字符串切片
func JSONToStrings(data datatypes.JSON) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
