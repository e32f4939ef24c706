package handler

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"ai-interview-go/internal/api/middleware"
	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/engine"
	"ai-interview-go/internal/logger"
	"ai-interview-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"
)

// maxUploadBytes 上传文件大小上限
const maxUploadBytes = 32 << 20

// ChatHandler 文档问答相关的HTTP处理器
type ChatHandler struct {
	cfg     *config.Config
	engine  *engine.Engine
	storage *storage.Storage
}

// NewChatHandler 创建文档问答处理器，storage可以为nil（无数据库部署）
func NewChatHandler(cfg *config.Config, eng *engine.Engine, store *storage.Storage) *ChatHandler {
	return &ChatHandler{cfg: cfg, engine: eng, storage: store}
}

// UploadPDF 接收multipart上传的PDF，建立新的问答会话
func (h *ChatHandler) UploadPDF(ctx context.Context, c *app.RequestContext) {
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

	result, err := h.engine.IngestPDF(ctx, middleware.UserID(c), fileHeader.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"session_id":  result.SessionID,
		"filename":    result.SourceName,
		"chunk_count": result.ChunkCount,
		"message":     "文档处理完成，可以开始提问",
	})
}

// ProcessYouTubeRequest 视频摄取请求
type ProcessYouTubeRequest struct {
	URL string `json:"url" vd:"len($)>0"`
}

// ProcessYouTube 摄取一个视频的字幕，建立新的问答会话
func (h *ChatHandler) ProcessYouTube(ctx context.Context, c *app.RequestContext) {
	var req ProcessYouTubeRequest
	if err := c.BindAndValidate(&req); err != nil {
		writeBadRequest(c, "缺少视频地址")
		return
	}

	result, err := h.engine.IngestYouTube(ctx, middleware.UserID(c), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"session_id":  result.SessionID,
		"chunk_count": result.ChunkCount,
		"message":     "视频字幕处理完成，可以开始提问",
	})
}

// ProcessRepoRequest 仓库摄取请求，async为true时走消息队列异步建索引
type ProcessRepoRequest struct {
	URL   string `json:"url" vd:"len($)>0"`
	Async bool   `json:"async"`
}

// ProcessRepo 摄取一个GitHub仓库。
// 异步模式立即返回会话ID，索引建成前对该会话提问会得到404。
func (h *ChatHandler) ProcessRepo(ctx context.Context, c *app.RequestContext) {
	var req ProcessRepoRequest
	if err := c.BindAndValidate(&req); err != nil {
		writeBadRequest(c, "缺少仓库地址")
		return
	}

	userID := middleware.UserID(c)
	if req.Async && h.storage != nil && h.storage.RabbitMQ != nil {
		result, err := h.engine.EnqueueRepoIngest(ctx, userID, req.URL)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(consts.StatusAccepted, utils.H{
			"session_id": result.SessionID,
			"message":    "仓库摄取任务已入队，索引建成后即可提问",
		})
		return
	}

	result, err := h.engine.IngestRepo(ctx, userID, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"session_id":  result.SessionID,
		"chunk_count": result.ChunkCount,
		"message":     "仓库处理完成，可以开始提问",
	})
}

// MessageRequest 会话内提问请求
type MessageRequest struct {
	SessionID string `json:"session_id" vd:"len($)>0"`
	Message   string `json:"message" vd:"len($)>0"`
}

// Message 在既有会话中提问，返回基于检索内容的回答
func (h *ChatHandler) Message(ctx context.Context, c *app.RequestContext) {
	var req MessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		writeBadRequest(c, "session_id与message均不能为空")
		return
	}

	answer, err := h.engine.Answer(ctx, middleware.UserID(c), req.SessionID, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"session_id": req.SessionID,
		"response":   answer,
	})
}

// ChatSessionSummary 会话列表项
type ChatSessionSummary struct {
	SessionID  string    `json:"session_id"`
	SourceType string    `json:"source_type"`
	SourceName string    `json:"source_name"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListSessions 列出当前用户的全部问答会话
func (h *ChatHandler) ListSessions(ctx context.Context, c *app.RequestContext) {
	if h.storage == nil || h.storage.MySQL == nil {
		c.JSON(consts.StatusOK, utils.H{"sessions": []ChatSessionSummary{}})
		return
	}

	sessions, err := h.storage.MySQL.ListChatSessions(ctx, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	summaries := make([]ChatSessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, ChatSessionSummary{
			SessionID:  s.SessionID,
			SourceType: s.SourceType,
			SourceName: s.SourceName,
			ChunkCount: s.ChunkCount,
			CreatedAt:  s.CreatedAt,
		})
	}
	c.JSON(consts.StatusOK, utils.H{"sessions": summaries})
}

// SessionDetail 返回单个会话的元信息与完整对话记录
func (h *ChatHandler) SessionDetail(ctx context.Context, c *app.RequestContext) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		writeBadRequest(c, "缺少session_id")
		return
	}

	userID := middleware.UserID(c)
	turns, err := h.engine.History(ctx, userID, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := utils.H{
		"session_id": sessionID,
		"messages":   turns,
	}
	if h.storage != nil && h.storage.MySQL != nil {
		if session, err := h.storage.MySQL.GetChatSession(ctx, sessionID, userID); err == nil {
			resp["source_type"] = session.SourceType
			resp["source_name"] = session.SourceName
		}
	}
	c.JSON(consts.StatusOK, resp)
}

// DeleteSession 删除会话及其索引与对话记录
func (h *ChatHandler) DeleteSession(ctx context.Context, c *app.RequestContext) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		writeBadRequest(c, "缺少session_id")
		return
	}

	userID := middleware.UserID(c)
	// 先校验归属，别人的会话表现为不存在
	if h.storage != nil && h.storage.MySQL != nil {
		if _, err := h.storage.MySQL.GetChatSession(ctx, sessionID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeError(c, apperr.NewSessionNotFoundError(sessionID))
				return
			}
			writeError(c, err)
			return
		}
	}

	if err := h.engine.DeleteSession(ctx, sessionID); err != nil {
		writeError(c, err)
		return
	}

	logger.Ctx(ctx).Info().Str("session_id", sessionID).Str("user_id", userID).Msg("会话已删除")
	c.JSON(consts.StatusOK, utils.H{"session_id": sessionID, "message": "会话已删除"})
}
