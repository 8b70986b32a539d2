package repository

import (
	"context"

	"video-sentinel/internal/domain/entity"
)

// AlertRuleRepository 告警规则仓储接口
type AlertRuleRepository interface {
	// Create 创建规则
	Create(ctx context.Context, rule *entity.AlertRule) error

	// Update 更新规则文本与开关
	Update(ctx context.Context, rule *entity.AlertRule) error

	// GetByID 根据 ID 获取规则，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.AlertRule, error)

	// List 列出全部规则（按创建时间倒序）
	List(ctx context.Context) ([]*entity.AlertRule, error)

	// ListEnabled 列出启用的规则
	ListEnabled(ctx context.Context) ([]*entity.AlertRule, error)

	// Delete 删除规则，返回是否存在
	Delete(ctx context.Context, id string) (bool, error)

	// IncrementTriggerCount 原子累加触发次数
	IncrementTriggerCount(ctx context.Context, id string, delta int64) error
}

// AlertTriggerRepository 告警触发记录仓储接口（只追加）
type AlertTriggerRepository interface {
	// InsertIfAbsent 按 (rule_id, segment_id) 去重插入，返回是否新插入
	InsertIfAbsent(ctx context.Context, trigger *entity.AlertTrigger) (bool, error)

	// ListRecent 最近的触发记录（按命中时间倒序）
	ListRecent(ctx context.Context, ruleID string, limit int) ([]*entity.AlertTrigger, error)

	// DeleteAll 删除全部触发记录
	DeleteAll(ctx context.Context) (int64, error)
}

// WatermarkStore 告警水位线存储
type WatermarkStore interface {
	// Get 读取水位线，未设置时为 0
	Get(ctx context.Context) (int64, error)

	// Set 写入水位线
	Set(ctx context.Context, id int64) error

	// TryLock 获取单写者锁，ok=false 表示被其他实例持有
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}
