// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/utils"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Secret string
	Issuer string
	// SkipPaths 按前缀匹配，跳过认证
	SkipPaths []string
	// QueryTokenPaths 允许通过 ?token= 传递令牌的前缀（<video> 标签无法设置请求头）
	QueryTokenPaths []string
	Enabled         bool
}

// Auth JWT 认证中间件
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		if !cfg.Enabled || hasAnyPrefix(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		token, authErr := extractToken(c, hasAnyPrefix(c.Request.URL.Path, cfg.QueryTokenPaths))
		if authErr != nil {
			abortAuth(c, authErr)
			return
		}

		claims, err := jwtManager.ParseToken(token)
		if err != nil {
			if errors.Is(err, utils.ErrExpiredToken) {
				abortAuth(c, apperrors.ErrTokenExpired)
				return
			}
			abortAuth(c, apperrors.ErrTokenInvalid)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// extractToken 优先读取 Authorization 头
func extractToken(c *gin.Context, allowQuery bool) (string, *apperrors.AppError) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if allowQuery {
			if t := strings.TrimSpace(c.Query("token")); t != "" {
				return t, nil
			}
		}
		return "", apperrors.ErrTokenMissing
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.ErrTokenInvalid
	}
	return strings.TrimSpace(parts[1]), nil
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// abortAuth 终止请求并返回 401
func abortAuth(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":       http.StatusUnauthorized,
		"message":    err.Message,
		"error_code": string(err.Code),
		"trace_id":   c.GetString("trace_id"),
	})
}

// DefaultSkipPaths 默认跳过认证的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}
