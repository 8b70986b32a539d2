package alert

import (
	"context"

	"github.com/google/uuid"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
	apperrors "video-sentinel/pkg/errors"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// RuleUpdate 规则的部分更新，nil 字段保持不变
type RuleUpdate struct {
	Query   *string
	Enabled *bool
}

// RuleService 告警规则管理
type RuleService struct {
	rules        repository.AlertRuleRepository
	triggers     repository.AlertTriggerRepository
	historyLimit int
}

// NewRuleService 创建规则服务，historyLimit 为历史查询上限
func NewRuleService(rules repository.AlertRuleRepository, triggers repository.AlertTriggerRepository, historyLimit int) *RuleService {
	if historyLimit <= 0 || historyLimit > maxHistoryLimit {
		historyLimit = maxHistoryLimit
	}
	return &RuleService{rules: rules, triggers: triggers, historyLimit: historyLimit}
}

// Create 创建规则，默认启用
func (s *RuleService) Create(ctx context.Context, query string, enabled *bool) (*entity.AlertRule, error) {
	on := true
	if enabled != nil {
		on = *enabled
	}
	rule, err := entity.NewAlertRule(uuid.NewString(), query, on)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeValidation, err.Error())
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create alert rule")
	}
	return rule, nil
}

// List 全部规则
func (s *RuleService) List(ctx context.Context) ([]*entity.AlertRule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list alert rules")
	}
	return rules, nil
}

// Get 获取规则
func (s *RuleService) Get(ctx context.Context, id string) (*entity.AlertRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get alert rule")
	}
	if rule == nil {
		return nil, apperrors.ErrRuleNotFound
	}
	return rule, nil
}

// Update 修改规则文本或开关，文本修改只影响之后的批次
func (s *RuleService) Update(ctx context.Context, id string, in RuleUpdate) (*entity.AlertRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Query != nil {
		if err := rule.Rename(*in.Query); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeValidation, err.Error())
		}
	}
	if in.Enabled != nil {
		rule.SetEnabled(*in.Enabled)
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update alert rule")
	}
	return rule, nil
}

// Delete 删除规则，已有触发记录保留
func (s *RuleService) Delete(ctx context.Context, id string) error {
	ok, err := s.rules.Delete(ctx, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete alert rule")
	}
	if !ok {
		return apperrors.ErrRuleNotFound
	}
	return nil
}

// History 最近的触发记录，ruleID 为空表示全部规则
func (s *RuleService) History(ctx context.Context, ruleID string, limit int) ([]*entity.AlertTrigger, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, s.historyLimit)
	triggers, err := s.triggers.ListRecent(ctx, ruleID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list alert history")
	}
	if triggers == nil {
		triggers = []*entity.AlertTrigger{}
	}
	return triggers, nil
}
