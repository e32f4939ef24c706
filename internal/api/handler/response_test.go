package handler

import (
	"errors"
	"testing"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/interview"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"会话不存在", apperr.NewSessionNotFoundError("s1"), consts.StatusNotFound},
		{"格式不支持", apperr.NewUnsupportedFormatError("s1", "docx"), consts.StatusUnsupportedMediaType},
		{"空语料", apperr.NewEmptyCorpusError("s1", "没有可索引的内容"), consts.StatusUnprocessableEntity},
		{"提取失败", apperr.NewExtractionError("s1", "解析PDF失败"), consts.StatusUnprocessableEntity},
		{"生成失败", apperr.NewGenerationError("s1", "模型超时"), consts.StatusBadGateway},
		{"面试未结束", interview.ErrInterviewNotFinished, consts.StatusConflict},
		{"未知错误", errors.New("数据库连接中断"), consts.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := app.NewContext(0)
			writeError(ctx, tc.err)
			assert.Equal(t, tc.status, ctx.Response.StatusCode())
		})
	}
}
