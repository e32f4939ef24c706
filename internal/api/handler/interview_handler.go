package handler

import (
	"context"
	"io"
	"time"

	"ai-interview-go/internal/api/middleware"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/engine"
	"ai-interview-go/internal/interview"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// InterviewHandler 模拟面试相关的HTTP处理器
type InterviewHandler struct {
	cfg     *config.Config
	engine  *engine.Engine
	manager *interview.Manager
	storage *storage.Storage
}

// NewInterviewHandler 创建模拟面试处理器
func NewInterviewHandler(cfg *config.Config, eng *engine.Engine, manager *interview.Manager, store *storage.Storage) *InterviewHandler {
	return &InterviewHandler{cfg: cfg, engine: eng, manager: manager, storage: store}
}

// UploadResume 接收multipart上传的简历，建立面试会话。
// 简历中的GitHub仓库链接会一并摄取进同一个索引。
func (h *InterviewHandler) UploadResume(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeBadRequest(c, "文件未找到")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		writeBadRequest(c, "文件超过大小上限")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
		return
	}

	userID := middleware.UserID(c)
	result, err := h.engine.IngestResume(ctx, userID, fileHeader.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.manager.Begin(ctx, result.SessionID, userID, result.ResumeText); err != nil {
		// 状态没建起来的面试会话不可用，回收索引避免悬空
		if delErr := h.engine.Index().Delete(ctx, result.SessionID); delErr != nil {
			logger.Ctx(ctx).Warn().Err(delErr).Str("session_id", result.SessionID).Msg("回收面试索引失败")
		}
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"interview_session_id": result.SessionID,
		"chunk_count":          result.ChunkCount,
		"linked_repos":         result.LinkedRepos,
		"message":              "简历处理完成，可以开始面试",
	})
}

// InterviewSessionRequest 只带面试会话ID的请求
type InterviewSessionRequest struct {
	InterviewSessionID string `json:"interview_session_id" vd:"len($)>0"`
}

// Start 取第一道面试问题
func (h *InterviewHandler) Start(ctx context.Context, c *app.RequestContext) {
	var req InterviewSessionRequest
	if err := c.BindAndValidate(&req); err != nil {
		writeBadRequest(c, "缺少interview_session_id")
		return
	}

	result, err := h.manager.NextQuestion(ctx, middleware.UserID(c), req.InterviewSessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}

// SubmitAnswerRequest 提交回答的请求
type SubmitAnswerRequest struct {
	InterviewSessionID string `json:"interview_session_id" vd:"len($)>0"`
	Answer             string `json:"answer" vd:"len($)>0"`
}

// SubmitAnswer 提交上一题的回答并取下一题。
// 全部环节问完后返回finished，此时应请求反馈报告。
func (h *InterviewHandler) SubmitAnswer(ctx context.Context, c *app.RequestContext) {
	var req SubmitAnswerRequest
	if err := c.BindAndValidate(&req); err != nil {
		writeBadRequest(c, "interview_session_id与answer均不能为空")
		return
	}

	result, err := h.manager.SubmitAnswer(ctx, middleware.UserID(c), req.InterviewSessionID, req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}

// Feedback 生成面试反馈报告。
// 成功后会话的索引与状态被清理，报告只能从数据库再查。
func (h *InterviewHandler) Feedback(ctx context.Context, c *app.RequestContext) {
	var req InterviewSessionRequest
	if err := c.BindAndValidate(&req); err != nil {
		writeBadRequest(c, "缺少interview_session_id")
		return
	}

	report, err := h.manager.Feedback(ctx, middleware.UserID(c), req.InterviewSessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, report)
}

// InterviewSessionSummary 面试会话列表项
type InterviewSessionSummary struct {
	SessionID      string    `json:"session_id"`
	ResumeFilename string    `json:"resume_filename"`
	LinkedRepos    []string  `json:"linked_repos"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// History 列出当前用户的历史面试会话
func (h *InterviewHandler) History(ctx context.Context, c *app.RequestContext) {
	if h.storage == nil || h.storage.MySQL == nil {
		c.JSON(consts.StatusOK, utils.H{"sessions": []InterviewSessionSummary{}})
		return
	}

	sessions, err := h.storage.MySQL.ListInterviewSessions(ctx, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	summaries := make([]InterviewSessionSummary, 0, len(sessions))
	for _, s := range sessions {
		repos, err := models.JSONToStrings(s.GithubReposJSON)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("session_id", s.SessionID).Msg("解析仓库列表失败")
		}
		summaries = append(summaries, InterviewSessionSummary{
			SessionID:      s.SessionID,
			ResumeFilename: s.ResumeFilename,
			LinkedRepos:    repos,
			Status:         s.Status,
			CreatedAt:      s.CreatedAt,
		})
	}
	c.JSON(consts.StatusOK, utils.H{"sessions": summaries})
}
