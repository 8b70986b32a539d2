package dto

import (
	"time"

	"video-sentinel/internal/application/alert"
	"video-sentinel/internal/domain/entity"
)

// CreateAlertRequest 创建告警规则请求
type CreateAlertRequest struct {
	Query   string `json:"query" binding:"required"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// UpdateAlertRequest 更新告警规则请求
type UpdateAlertRequest struct {
	Query   *string `json:"query,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// ToRuleUpdate 转换为规则更新
func (r *UpdateAlertRequest) ToRuleUpdate() alert.RuleUpdate {
	return alert.RuleUpdate{Query: r.Query, Enabled: r.Enabled}
}

// AlertRuleResponse 告警规则
type AlertRuleResponse struct {
	ID           string `json:"id"`
	Query        string `json:"query"`
	Enabled      bool   `json:"enabled"`
	TriggerCount int64  `json:"trigger_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// AlertRuleListResponse 告警规则列表
type AlertRuleListResponse struct {
	Rules []*AlertRuleResponse `json:"rules"`
}

// ToAlertRuleResponse 转换规则
func ToAlertRuleResponse(r *entity.AlertRule) *AlertRuleResponse {
	return &AlertRuleResponse{
		ID:           r.ID,
		Query:        r.Query,
		Enabled:      r.Enabled,
		TriggerCount: r.TriggerCount,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
}

// ToAlertRuleListResponse 转换规则列表
func ToAlertRuleListResponse(rules []*entity.AlertRule) *AlertRuleListResponse {
	out := make([]*AlertRuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, ToAlertRuleResponse(r))
	}
	return &AlertRuleListResponse{Rules: out}
}

// AlertTriggerResponse 告警触发记录
type AlertTriggerResponse struct {
	ID         string  `json:"id"`
	RuleID     string  `json:"rule_id"`
	RuleQuery  string  `json:"rule_query"`
	SegmentID  string  `json:"segment_id"`
	Snippet    string  `json:"snippet"`
	Distance   float64 `json:"distance"`
	Location   string  `json:"location"`
	LocalPath  string  `json:"local_path,omitempty"`
	CapturedAt string  `json:"captured_at"`
	MatchedAt  string  `json:"matched_at"`
}

// AlertHistoryResponse 告警历史
type AlertHistoryResponse struct {
	Triggers []*AlertTriggerResponse `json:"triggers"`
}

// ToAlertHistoryResponse 转换告警历史
func ToAlertHistoryResponse(triggers []*entity.AlertTrigger) *AlertHistoryResponse {
	out := make([]*AlertTriggerResponse, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, &AlertTriggerResponse{
			ID:         t.ID,
			RuleID:     t.RuleID,
			RuleQuery:  t.RuleQuery,
			SegmentID:  t.SegmentID,
			Snippet:    t.Snippet,
			Distance:   t.Distance,
			Location:   t.Location,
			LocalPath:  t.LocalPath,
			CapturedAt: t.CapturedAt.Format(time.RFC3339),
			MatchedAt:  t.MatchedAt.Format(time.RFC3339),
		})
	}
	return &AlertHistoryResponse{Triggers: out}
}
