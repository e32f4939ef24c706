package apperr

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrUnsupportedFormat = errors.New("不支持的内容格式")
	ErrExtractionFailed  = errors.New("内容提取失败")
	ErrEmptyCorpus       = errors.New("内容为空，无法建立索引")
	ErrSessionNotFound   = errors.New("会话不存在")
	ErrGenerationFailed  = errors.New("模型生成失败")
)

// SourceError 包含会话与操作上下文的详细错误
type SourceError struct {
	SessionID string
	Op        string
	BaseErr   error
	Detail    string
}

func (e *SourceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 会话:%s): %s", e.BaseErr, e.Op, e.SessionID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 会话:%s)", e.BaseErr, e.Op, e.SessionID)
}

func (e *SourceError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *SourceError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数

func NewUnsupportedFormatError(sessionID, detail string) error {
	return &SourceError{SessionID: sessionID, Op: "extract", BaseErr: ErrUnsupportedFormat, Detail: detail}
}

func NewExtractionError(sessionID, detail string) error {
	return &SourceError{SessionID: sessionID, Op: "extract", BaseErr: ErrExtractionFailed, Detail: detail}
}

func NewEmptyCorpusError(sessionID, detail string) error {
	return &SourceError{SessionID: sessionID, Op: "build", BaseErr: ErrEmptyCorpus, Detail: detail}
}

func NewSessionNotFoundError(sessionID string) error {
	return &SourceError{SessionID: sessionID, Op: "open", BaseErr: ErrSessionNotFound}
}

func NewGenerationError(sessionID, detail string) error {
	return &SourceError{SessionID: sessionID, Op: "generate", BaseErr: ErrGenerationFailed, Detail: detail}
}
