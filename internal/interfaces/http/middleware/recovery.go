package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"video-sentinel/internal/interfaces/http/dto"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
)

// Recovery 捕获 panic，记录堆栈并返回统一的 500 响应
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "panic recovered",
			fmt.Errorf("%v", recovered),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"stack", string(debug.Stack()),
		)
		dto.AppError(c, apperrors.ErrInternalError)
		c.Abort()
	})
}
