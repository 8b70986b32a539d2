package memory

import (
	"context"
	"slices"
	"sync"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
)

// AlertRuleRepository 内存告警规则仓储
type AlertRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]entity.AlertRule
}

// NewAlertRuleRepository 创建内存规则仓储
func NewAlertRuleRepository() *AlertRuleRepository {
	return &AlertRuleRepository{rules: make(map[string]entity.AlertRule)}
}

var _ repository.AlertRuleRepository = (*AlertRuleRepository)(nil)

func (r *AlertRuleRepository) Create(_ context.Context, rule *entity.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = *rule
	return nil
}

func (r *AlertRuleRepository) Update(_ context.Context, rule *entity.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rules[rule.ID]; ok {
		// 触发次数只由告警引擎累加
		updated := *rule
		updated.TriggerCount = cur.TriggerCount
		r.rules[rule.ID] = updated
	}
	return nil
}

func (r *AlertRuleRepository) GetByID(_ context.Context, id string) (*entity.AlertRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (r *AlertRuleRepository) List(_ context.Context) ([]*entity.AlertRule, error) {
	return r.list(false), nil
}

func (r *AlertRuleRepository) ListEnabled(_ context.Context) ([]*entity.AlertRule, error) {
	return r.list(true), nil
}

func (r *AlertRuleRepository) list(enabledOnly bool) []*entity.AlertRule {
	r.mu.RLock()
	out := make([]*entity.AlertRule, 0, len(r.rules))
	for _, rule := range r.rules {
		if enabledOnly && !rule.Enabled {
			continue
		}
		c := rule
		out = append(out, &c)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *entity.AlertRule) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (r *AlertRuleRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rules[id]
	delete(r.rules, id)
	return ok, nil
}

func (r *AlertRuleRepository) IncrementTriggerCount(_ context.Context, id string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule, ok := r.rules[id]; ok {
		rule.TriggerCount += delta
		r.rules[id] = rule
	}
	return nil
}

// AlertTriggerRepository 内存触发记录仓储
type AlertTriggerRepository struct {
	mu       sync.RWMutex
	triggers []entity.AlertTrigger
}

// NewAlertTriggerRepository 创建内存触发记录仓储
func NewAlertTriggerRepository() *AlertTriggerRepository {
	return &AlertTriggerRepository{}
}

var _ repository.AlertTriggerRepository = (*AlertTriggerRepository)(nil)

func (r *AlertTriggerRepository) InsertIfAbsent(_ context.Context, trigger *entity.AlertTrigger) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.triggers {
		if t.RuleID == trigger.RuleID && t.SegmentID == trigger.SegmentID {
			return false, nil
		}
	}
	r.triggers = append(r.triggers, *trigger)
	return true, nil
}

func (r *AlertTriggerRepository) ListRecent(_ context.Context, ruleID string, limit int) ([]*entity.AlertTrigger, error) {
	r.mu.RLock()
	out := make([]*entity.AlertTrigger, 0, len(r.triggers))
	for _, t := range r.triggers {
		if ruleID != "" && t.RuleID != ruleID {
			continue
		}
		c := t
		out = append(out, &c)
	}
	r.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b *entity.AlertTrigger) int { return b.MatchedAt.Compare(a.MatchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AlertTriggerRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.triggers))
	r.triggers = nil
	return n, nil
}
