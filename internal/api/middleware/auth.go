package middleware

import (
	"context"
	"fmt"

	"ai-interview-go/internal/config"
	"ai-interview-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// userIDKey 认证通过后写入请求上下文的用户ID键
const userIDKey = "user_id"

// NewAuth 创建Bearer令牌认证中间件。
// 令牌在配置的api_keys表中查找归属用户，查不到返回401。
func NewAuth(cfg *config.ServerConfig) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, token string) (bool, error) {
			userID, ok := cfg.APIKeys[token]
			if !ok {
				return false, fmt.Errorf("未知的访问令牌")
			}
			c.Set(userIDKey, userID)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			logger.Ctx(ctx).Debug().Err(err).Str("path", string(c.Path())).Msg("请求认证失败")
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "认证失败"})
		}),
	)
}

// UserID 取出认证中间件写入的用户ID，未认证的请求返回空串
func UserID(c *app.RequestContext) string {
	if v, ok := c.Get(userIDKey); ok {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}
