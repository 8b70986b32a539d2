package handler

import (
	"github.com/gin-gonic/gin"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
	"video-sentinel/internal/interfaces/http/dto"
	"video-sentinel/pkg/errors"
)

// SegmentHandler 分段查询处理器
type SegmentHandler struct {
	segmentRepo repository.SegmentRepository
}

// NewSegmentHandler 创建分段查询处理器
func NewSegmentHandler(segmentRepo repository.SegmentRepository) *SegmentHandler {
	return &SegmentHandler{segmentRepo: segmentRepo}
}

var segmentStates = map[entity.SegmentState]bool{
	entity.SegmentStateRecording: true,
	entity.SegmentStateClosed:    true,
	entity.SegmentStateUploaded:  true,
	entity.SegmentStateDescribed: true,
	entity.SegmentStateIndexed:   true,
	entity.SegmentStateFailed:    true,
}

// ListSegments 分段列表
// @Summary 分段列表
// @Tags Segments
// @Produce json
// @Param state query string false "状态过滤"
// @Param stream_id query string false "流过滤"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.SegmentListResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/segments [get]
func (h *SegmentHandler) ListSegments(c *gin.Context) {
	ctx := c.Request.Context()
	page := dto.BindPage(c)

	filter := &repository.SegmentFilter{
		StreamID: c.Query("stream_id"),
		State:    entity.SegmentState(c.Query("state")),
	}
	if filter.State != "" && !segmentStates[filter.State] {
		dto.BadRequest(c, "invalid segment state: "+string(filter.State))
		return
	}

	result, err := h.segmentRepo.List(ctx, filter, page.Pagination())
	if err != nil {
		handleError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list segments"), "failed to list segments")
		return
	}
	dto.Success(c, dto.ToSegmentListResponse(result))
}

// GetSegment 分段详情
// @Summary 分段详情
// @Tags Segments
// @Produce json
// @Param id path string true "分段 ID"
// @Success 200 {object} dto.Response[dto.SegmentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/segments/{id} [get]
func (h *SegmentHandler) GetSegment(c *gin.Context) {
	ctx := c.Request.Context()

	seg, err := h.segmentRepo.GetByID(ctx, dto.BindID(c))
	if err != nil {
		handleError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to get segment"), "failed to get segment")
		return
	}
	if seg == nil {
		handleError(c, errors.ErrSegmentNotFound, "segment not found")
		return
	}
	dto.Success(c, dto.ToSegmentResponse(seg))
}
