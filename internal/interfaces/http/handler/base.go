package handler

import (
	"github.com/gin-gonic/gin"

	"video-sentinel/internal/interfaces/http/dto"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
)

// handleError 按 AppError 映射 HTTP 状态；未归类错误记录日志并返回 500
func handleError(c *gin.Context, err error, fallback string) {
	ctx := c.Request.Context()
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(ctx, fallback, err)
		}
		dto.AppError(c, appErr)
		return
	}
	logger.Error(ctx, fallback, err)
	dto.InternalError(c, fallback)
}
