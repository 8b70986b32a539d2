package handler

import (
	"github.com/gin-gonic/gin"

	"video-sentinel/internal/application/query"
	"video-sentinel/internal/interfaces/http/dto"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	engine *query.Engine
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(engine *query.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search 语义检索片段
// @Summary 检索片段
// @Description 按自然语言描述检索录像片段，默认最近 24 小时
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索参数"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	clips, err := h.engine.FindClips(c.Request.Context(), req.ToInput())
	if err != nil {
		handleError(c, err, "failed to search clips")
		return
	}
	dto.Success(c, dto.ToSearchResponse(req.Query, clips))
}

// Analysis 检索并逐段分析
// @Summary 片段分析
// @Description 检索相关片段后按问题重新描述，单段失败不影响其他片段
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "分析参数"
// @Success 200 {object} dto.Response[dto.AnalysisResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/analysis [post]
func (h *SearchHandler) Analysis(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	items, err := h.engine.Analyze(c.Request.Context(), req.ToInput())
	if err != nil {
		handleError(c, err, "failed to analyze clips")
		return
	}
	dto.Success(c, dto.ToAnalysisResponse(req.Query, items))
}

// AvailableDates 有录像的日期
// @Summary 可用日期
// @Tags Search
// @Produce json
// @Success 200 {object} dto.Response[dto.DatesResponse]
// @Router /api/v1/search/available-dates [get]
func (h *SearchHandler) AvailableDates(c *gin.Context) {
	dates, err := h.engine.AvailableDates(c.Request.Context())
	if err != nil {
		handleError(c, err, "failed to list available dates")
		return
	}
	dto.Success(c, &dto.DatesResponse{Dates: dates})
}

// Stats 最近 24 小时处理统计
// @Summary 处理统计
// @Tags Search
// @Produce json
// @Success 200 {object} dto.Response[dto.StatsResponse]
// @Router /api/v1/search/stats [get]
func (h *SearchHandler) Stats(c *gin.Context) {
	st, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err, "failed to compute stats")
		return
	}
	dto.Success(c, dto.ToStatsResponse(st))
}
