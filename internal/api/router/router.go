package router

import (
	"context"

	"ai-interview-go/internal/api/handler"
	"ai-interview-go/internal/api/middleware"
	"ai-interview-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册 API 路由。
// 健康检查不需要认证，其余路由全部走Bearer令牌认证。
func RegisterRoutes(h *server.Hertz, cfg *config.Config, chatHandler *handler.ChatHandler, interviewHandler *handler.InterviewHandler) {
	api := h.Group("/api/v1")

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	auth := middleware.NewAuth(&cfg.Server)

	chat := api.Group("/chat", auth)
	chat.POST("/upload-pdf", chatHandler.UploadPDF)
	chat.POST("/process-youtube", chatHandler.ProcessYouTube)
	chat.POST("/process-repo", chatHandler.ProcessRepo)
	chat.POST("/message", chatHandler.Message)
	chat.GET("/history", chatHandler.ListSessions)
	chat.GET("/session/:session_id", chatHandler.SessionDetail)
	chat.DELETE("/session/:session_id", chatHandler.DeleteSession)

	iv := api.Group("/interview", auth)
	iv.POST("/upload-resume", interviewHandler.UploadResume)
	iv.POST("/start", interviewHandler.Start)
	iv.POST("/submit-answer", interviewHandler.SubmitAnswer)
	iv.POST("/feedback", interviewHandler.Feedback)
	iv.GET("/history", interviewHandler.History)
}
