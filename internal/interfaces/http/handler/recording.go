package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"video-sentinel/internal/application/capture"
	"video-sentinel/internal/application/maintenance"
	"video-sentinel/internal/interfaces/http/dto"
)

// Recorder 录制控制
type Recorder interface {
	Start(ctx context.Context, in capture.StartInput) (capture.Status, bool, error)
	Stop(ctx context.Context) (capture.Status, error)
	Status() capture.Status
}

// RecordingHandler 录制处理器
type RecordingHandler struct {
	recorder    Recorder
	maintenance *maintenance.Service
}

// NewRecordingHandler 创建录制处理器
func NewRecordingHandler(recorder Recorder, maintenanceSvc *maintenance.Service) *RecordingHandler {
	return &RecordingHandler{
		recorder:    recorder,
		maintenance: maintenanceSvc,
	}
}

// Start 开始录制
// @Summary 开始录制
// @Description 开始录制视频流；已在录制时返回 already_recording
// @Tags Recording
// @Accept json
// @Produce json
// @Param body body dto.StartRecordingRequest true "录制参数"
// @Success 200 {object} dto.Response[dto.RecordingActionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/v1/recording/start [post]
func (h *RecordingHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StartRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if m := req.ChunkDurationMinutes; m != nil && (*m < capture.MinChunkMinutes || *m > capture.MaxChunkMinutes) {
		dto.BadRequest(c, "chunk_duration_minutes must be between 1 and 60")
		return
	}

	st, started, err := h.recorder.Start(ctx, capture.StartInput{
		StreamURL:    req.StreamURL,
		ChunkMinutes: req.ChunkMinutes(),
	})
	if err != nil {
		handleError(c, err, "failed to start recording")
		return
	}

	status := "started"
	if !started {
		status = "already_recording"
	}
	dto.Success(c, dto.ToRecordingActionResponse(status, st))
}

// Stop 停止录制
// @Summary 停止录制
// @Description 停止录制并完成当前分段
// @Tags Recording
// @Produce json
// @Success 200 {object} dto.Response[dto.RecordingActionResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/recording/stop [post]
func (h *RecordingHandler) Stop(c *gin.Context) {
	st, err := h.recorder.Stop(c.Request.Context())
	if err != nil {
		handleError(c, err, "failed to stop recording")
		return
	}
	dto.Success(c, dto.ToRecordingActionResponse("stopped", st))
}

// Status 录制状态
// @Summary 录制状态
// @Tags Recording
// @Produce json
// @Success 200 {object} dto.Response[dto.RecordingStatusResponse]
// @Router /api/v1/recording/status [get]
func (h *RecordingHandler) Status(c *gin.Context) {
	dto.Success(c, dto.ToRecordingStatusResponse(h.recorder.Status()))
}

// ClearDatabase 清空索引与录像
// @Summary 清库
// @Description 删除全部索引记录、分段、触发记录和本地录像；录制中返回 409
// @Tags Recording
// @Produce json
// @Success 200 {object} dto.Response[dto.ClearDatabaseResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/recording/clear-database [post]
func (h *RecordingHandler) ClearDatabase(c *gin.Context) {
	res, err := h.maintenance.ClearDatabase(c.Request.Context())
	if err != nil {
		handleError(c, err, "failed to clear database")
		return
	}
	dto.Success(c, dto.ToClearDatabaseResponse(res))
}
