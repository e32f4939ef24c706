package handler

import (
	"errors"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/interview"
	"ai-interview-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// writeError 把业务错误翻译成HTTP状态码并返回统一的错误响应。
// 会话归属不符与会话不存在走同一个404，调用方无法区分两者。
func writeError(c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrSessionNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, apperr.ErrUnsupportedFormat):
		status = consts.StatusUnsupportedMediaType
	case errors.Is(err, apperr.ErrEmptyCorpus), errors.Is(err, apperr.ErrExtractionFailed):
		status = consts.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrGenerationFailed):
		status = consts.StatusBadGateway
	case errors.Is(err, interview.ErrInterviewNotFinished):
		status = consts.StatusConflict
	}

	if status == consts.StatusInternalServerError {
		logger.Error().Err(err).Msg("请求处理失败")
	}
	c.JSON(status, utils.H{"error": err.Error()})
}

func writeBadRequest(c *app.RequestContext, message string) {
	c.JSON(consts.StatusBadRequest, utils.H{"error": message})
}
