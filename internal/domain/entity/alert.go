package entity

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxAlertQueryLength 规则文本最大长度
	MaxAlertQueryLength = 500
	// SnippetLength 触发记录中保留的描述长度
	SnippetLength = 200
)

var (
	ErrEmptyAlertQuery   = errors.New("alert query must not be empty")
	ErrAlertQueryTooLong = errors.New("alert query exceeds 500 characters")
)

// AlertRule 常驻的自然语言告警规则
type AlertRule struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Query        string    `gorm:"type:varchar(500);not null" json:"query"`
	Enabled      bool      `gorm:"not null;default:true;index" json:"enabled"`
	TriggerCount int64     `gorm:"not null;default:0" json:"trigger_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName GORM 表名
func (AlertRule) TableName() string { return "alert_rules" }

// NormalizeAlertQuery 校验并规范化规则文本
func NormalizeAlertQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyAlertQuery
	}
	if utf8.RuneCountInString(query) > MaxAlertQueryLength {
		return "", ErrAlertQueryTooLong
	}
	return query, nil
}

// NewAlertRule 创建规则
func NewAlertRule(id, query string, enabled bool) (*AlertRule, error) {
	q, err := NormalizeAlertQuery(query)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &AlertRule{
		ID:        id,
		Query:     q,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Rename 修改规则文本，只影响之后的批次
func (r *AlertRule) Rename(query string) error {
	q, err := NormalizeAlertQuery(query)
	if err != nil {
		return err
	}
	r.Query = q
	r.UpdatedAt = time.Now()
	return nil
}

// SetEnabled 切换 enabled/disabled
func (r *AlertRule) SetEnabled(enabled bool) {
	r.Enabled = enabled
	r.UpdatedAt = time.Now()
}

// AlertTrigger 规则命中某个分段的不可变记录
type AlertTrigger struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	RuleID     string    `gorm:"type:uuid;not null;uniqueIndex:uq_alert_triggers_rule_segment,priority:1" json:"rule_id"`
	SegmentID  string    `gorm:"type:uuid;not null;uniqueIndex:uq_alert_triggers_rule_segment,priority:2" json:"segment_id"`
	RuleQuery  string    `gorm:"type:varchar(500)" json:"rule_query"`
	Snippet    string    `gorm:"type:text" json:"snippet"`
	Distance   float64   `json:"distance"`
	Location   string    `gorm:"type:text" json:"location"`
	LocalPath  string    `gorm:"type:text" json:"local_path"`
	CapturedAt time.Time `json:"captured_at"`
	MatchedAt  time.Time `gorm:"not null;index" json:"matched_at"`
}

// TableName GORM 表名
func (AlertTrigger) TableName() string { return "alert_triggers" }

// NewAlertTrigger 由规则和命中的索引记录构建触发记录
func NewAlertTrigger(id string, rule *AlertRule, rec *IndexRecord, distance float64, matchedAt time.Time) *AlertTrigger {
	return &AlertTrigger{
		ID:         id,
		RuleID:     rule.ID,
		SegmentID:  rec.SegmentID,
		RuleQuery:  rule.Query,
		Snippet:    Snippet(rec.Description, SnippetLength),
		Distance:   distance,
		Location:   rec.Location,
		LocalPath:  rec.LocalPath,
		CapturedAt: rec.CapturedAt,
		MatchedAt:  matchedAt,
	}
}

// Snippet 按字符截断
func Snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
