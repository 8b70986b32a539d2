package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
)

// AlertRuleRepository 告警规则仓储实现
type AlertRuleRepository struct {
	client *Client
}

var _ repository.AlertRuleRepository = (*AlertRuleRepository)(nil)

// NewAlertRuleRepository 创建告警规则仓储
func NewAlertRuleRepository(client *Client) *AlertRuleRepository {
	return &AlertRuleRepository{client: client}
}

// Create 创建规则
func (r *AlertRuleRepository) Create(ctx context.Context, rule *entity.AlertRule) error {
	ctx, span := tracer.Start(ctx, "postgres.AlertRuleRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(rule).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// Update 只更新文本和开关，trigger_count 由告警引擎维护
func (r *AlertRuleRepository) Update(ctx context.Context, rule *entity.AlertRule) error {
	ctx, span := tracer.Start(ctx, "postgres.AlertRuleRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(rule).
		Select("query", "enabled", "updated_at").
		Updates(rule).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update alert rule: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取规则
func (r *AlertRuleRepository) GetByID(ctx context.Context, id string) (*entity.AlertRule, error) {
	ctx, span := tracer.Start(ctx, "postgres.AlertRuleRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var rule entity.AlertRule
	if err := db.First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}
	return &rule, nil
}

// List 列出全部规则
func (r *AlertRuleRepository) List(ctx context.Context) ([]*entity.AlertRule, error) {
	ctx, span := tracer.Start(ctx, "postgres.AlertRuleRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var rules []*entity.AlertRule
	if err := db.Order("created_at DESC").Find(&rules).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// ListEnabled 列出启用的规则
func (r *AlertRuleRepository) ListEnabled(ctx context.Context) ([]*entity.AlertRule, error) {
	ctx, span := tracer.Start(ctx, "postgres.AlertRuleRepository.ListEnabled")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var rules []*entity.AlertRule
	if err := db.Where("enabled = ?", true).Order("created_at ASC").Find(&rules).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list enabled alert rules: %w", err)
	}
	return rules, nil
}

// Delete 删除规则
func (r *AlertRuleRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.AlertRuleRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Delete(&entity.AlertRule{}, "id = ?", id)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to delete alert rule: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IncrementTriggerCount 原子累加触发次数
func (r *AlertRuleRepository) IncrementTriggerCount(ctx context.Context, id string, delta int64) error {
	ctx, span := tracer.Start(ctx, "postgres.AlertRuleRepository.IncrementTriggerCount")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.AlertRule{}).
		Where("id = ?", id).
		UpdateColumn("trigger_count", gorm.Expr("trigger_count + ?", delta)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to increment trigger count: %w", err)
	}
	return nil
}

// AlertTriggerRepository 告警触发记录仓储实现
type AlertTriggerRepository struct {
	client *Client
}

var _ repository.AlertTriggerRepository = (*AlertTriggerRepository)(nil)

// NewAlertTriggerRepository 创建触发记录仓储
func NewAlertTriggerRepository(client *Client) *AlertTriggerRepository {
	return &AlertTriggerRepository{client: client}
}

// InsertIfAbsent 依赖 (rule_id, segment_id) 唯一索引去重
func (r *AlertTriggerRepository) InsertIfAbsent(ctx context.Context, trigger *entity.AlertTrigger) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.AlertTriggerRepository.InsertIfAbsent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rule_id"}, {Name: "segment_id"}},
		DoNothing: true,
	}).Create(trigger)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to insert alert trigger: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListRecent 最近的触发记录，ruleID 为空时不过滤
func (r *AlertTriggerRepository) ListRecent(ctx context.Context, ruleID string, limit int) ([]*entity.AlertTrigger, error) {
	ctx, span := tracer.Start(ctx, "postgres.AlertTriggerRepository.ListRecent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.AlertTrigger{})
	if ruleID != "" {
		query = query.Where("rule_id = ?", ruleID)
	}

	var triggers []*entity.AlertTrigger
	if err := query.Order("matched_at DESC").Limit(limit).Find(&triggers).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list alert triggers: %w", err)
	}
	return triggers, nil
}

// DeleteAll 删除全部触发记录
func (r *AlertTriggerRepository) DeleteAll(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.AlertTriggerRepository.DeleteAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Where("1 = 1").Delete(&entity.AlertTrigger{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete alert triggers: %w", result.Error)
	}
	return result.RowsAffected, nil
}
