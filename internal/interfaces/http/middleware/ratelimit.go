package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"video-sentinel/internal/infrastructure/persistence/redis"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ RateLimiter = (*redis.RateLimiter)(nil)

// RateLimit 按用户（未认证时按 IP）和路由限流
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	limit := cfg.RequestsPerSecond + max(cfg.Burst, 0)

	return func(c *gin.Context) {
		subject := c.GetString("user_id")
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		allowed, err := limiter.Allow(c.Request.Context(), redis.BuildRateLimitKey(subject, endpoint), limit, time.Second)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":       http.StatusTooManyRequests,
				"message":    "rate limit exceeded",
				"error_code": string(apperrors.CodeTooManyRequests),
				"trace_id":   c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
