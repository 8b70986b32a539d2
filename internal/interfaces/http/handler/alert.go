package handler

import (
	"github.com/gin-gonic/gin"

	"video-sentinel/internal/application/alert"
	"video-sentinel/internal/interfaces/http/dto"
)

// AlertHandler 告警规则处理器
type AlertHandler struct {
	rules *alert.RuleService
}

// NewAlertHandler 创建告警规则处理器
func NewAlertHandler(rules *alert.RuleService) *AlertHandler {
	return &AlertHandler{rules: rules}
}

// ListRules 规则列表
// @Summary 告警规则列表
// @Tags Alerts
// @Produce json
// @Success 200 {object} dto.Response[dto.AlertRuleListResponse]
// @Router /api/v1/alerts [get]
func (h *AlertHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		handleError(c, err, "failed to list alert rules")
		return
	}
	dto.Success(c, dto.ToAlertRuleListResponse(rules))
}

// CreateRule 创建规则
// @Summary 创建告警规则
// @Tags Alerts
// @Accept json
// @Produce json
// @Param body body dto.CreateAlertRequest true "规则"
// @Success 201 {object} dto.Response[dto.AlertRuleResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/alerts [post]
func (h *AlertHandler) CreateRule(c *gin.Context) {
	var req dto.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), req.Query, req.Enabled)
	if err != nil {
		handleError(c, err, "failed to create alert rule")
		return
	}
	dto.Created(c, dto.ToAlertRuleResponse(rule))
}

// GetRule 规则详情
// @Summary 告警规则详情
// @Tags Alerts
// @Produce json
// @Param id path string true "规则 ID"
// @Success 200 {object} dto.Response[dto.AlertRuleResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/alerts/{id} [get]
func (h *AlertHandler) GetRule(c *gin.Context) {
	rule, err := h.rules.Get(c.Request.Context(), dto.BindID(c))
	if err != nil {
		handleError(c, err, "failed to get alert rule")
		return
	}
	dto.Success(c, dto.ToAlertRuleResponse(rule))
}

// UpdateRule 更新规则
// @Summary 更新告警规则
// @Description 修改规则文本或开关，只影响之后评估的批次
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "规则 ID"
// @Param body body dto.UpdateAlertRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.AlertRuleResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/alerts/{id} [put]
func (h *AlertHandler) UpdateRule(c *gin.Context) {
	var req dto.UpdateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), dto.BindID(c), req.ToRuleUpdate())
	if err != nil {
		handleError(c, err, "failed to update alert rule")
		return
	}
	dto.Success(c, dto.ToAlertRuleResponse(rule))
}

// DeleteRule 删除规则
// @Summary 删除告警规则
// @Tags Alerts
// @Param id path string true "规则 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/alerts/{id} [delete]
func (h *AlertHandler) DeleteRule(c *gin.Context) {
	if err := h.rules.Delete(c.Request.Context(), dto.BindID(c)); err != nil {
		handleError(c, err, "failed to delete alert rule")
		return
	}
	dto.NoContent(c)
}

// History 触发历史
// @Summary 告警历史
// @Tags Alerts
// @Produce json
// @Param limit query int false "条数，默认 50"
// @Param rule_id query string false "按规则过滤"
// @Success 200 {object} dto.Response[dto.AlertHistoryResponse]
// @Router /api/v1/alerts/history [get]
func (h *AlertHandler) History(c *gin.Context) {
	triggers, err := h.rules.History(c.Request.Context(), c.Query("rule_id"), dto.BindLimit(c))
	if err != nil {
		handleError(c, err, "failed to list alert history")
		return
	}
	dto.Success(c, dto.ToAlertHistoryResponse(triggers))
}
