package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"video-sentinel/pkg/logger"
)

// Audit 访问日志；视频的 Range 请求只在出错时记录
func Audit(quietPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status < 400 && hasAnyPrefix(c.Request.URL.Path, quietPrefixes) {
			return
		}

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"body_size", c.Writer.Size(),
		}
		if status >= 500 {
			logger.Warn(c.Request.Context(), "api request failed", args...)
			return
		}
		logger.Info(c.Request.Context(), "api request", args...)
	}
}
