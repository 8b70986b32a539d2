package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"video-sentinel/pkg/metrics"
)

// Metrics Prometheus 指标采集中间件，按路由模板聚合
func Metrics(skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hasAnyPrefix(c.Request.URL.Path, skipPaths) {
			c.Next()
			return
		}

		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		if reqSize := float64(c.Request.ContentLength); reqSize > 0 {
			metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(reqSize)
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if respSize := float64(c.Writer.Size()); respSize > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(respSize)
		}
	}
}
