// Package messaging 基于 Redis Streams 的事件投递
package messaging

import (
	"encoding/json"
	"time"

	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/entity"
)

// 消息类型
const (
	TypeSegmentClosed  = "segment.closed"
	TypeAlertTriggered = "alert.triggered"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	StreamID  string            `json:"stream_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, streamID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		StreamID:  streamID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

const (
	StreamSegmentClosed  Stream = "stream:segment:closed"
	StreamAlertTriggered Stream = "stream:alert:triggered"
)

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const (
	ConsumerGroupIngest        ConsumerGroup = "cg-ingest-worker"
	ConsumerGroupAlertNotifier ConsumerGroup = "cg-alert-notifier"
)

// WithPrefix 加上配置的消费者组前缀
func (g ConsumerGroup) WithPrefix(prefix string) ConsumerGroup {
	if prefix == "" {
		return g
	}
	return ConsumerGroup(prefix + string(g))
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// BackoffFromConfig 从配置构建，缺省字段使用默认值
func BackoffFromConfig(cfg config.BackoffConfig) BackoffConfig {
	b := DefaultBackoffConfig()
	if cfg.Initial > 0 {
		b.Initial = cfg.Initial
	}
	if cfg.Max > 0 {
		b.Max = cfg.Max
	}
	if cfg.Multiplier > 1 {
		b.Multiplier = cfg.Multiplier
	}
	return b
}

// CalculateBackoff 计算退避时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			backoff = c.Max
			break
		}
	}
	return backoff
}

// SegmentClosedMessage 分段关闭事件
type SegmentClosedMessage struct {
	SegmentID   string    `json:"segment_id"`
	StreamID    string    `json:"stream_id"`
	StreamURL   string    `json:"stream_url"`
	RecordingID string    `json:"recording_id"`
	Sequence    int64     `json:"sequence"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  int64     `json:"duration_ms"`
	LocalPath   string    `json:"local_path"`
}

// NewSegmentClosedMessage 由已关闭的分段构建事件
func NewSegmentClosedMessage(seg *entity.Segment) *SegmentClosedMessage {
	return &SegmentClosedMessage{
		SegmentID:   seg.ID,
		StreamID:    seg.StreamID,
		StreamURL:   seg.StreamURL,
		RecordingID: seg.RecordingID,
		Sequence:    seg.Sequence,
		StartedAt:   seg.StartedAt,
		DurationMs:  seg.DurationMs,
		LocalPath:   seg.LocalPath,
	}
}

// Segment 还原为 closed 状态的分段
func (m *SegmentClosedMessage) Segment() (*entity.Segment, error) {
	seg := entity.NewSegment(m.SegmentID, m.StreamID, m.StreamURL, m.RecordingID, m.Sequence, m.StartedAt, m.LocalPath)
	if err := seg.Close(time.Duration(m.DurationMs) * time.Millisecond); err != nil {
		return nil, err
	}
	return seg, nil
}

// AlertTriggeredMessage 告警触发事件
type AlertTriggeredMessage struct {
	TriggerID  string    `json:"trigger_id"`
	RuleID     string    `json:"rule_id"`
	RuleQuery  string    `json:"rule_query"`
	SegmentID  string    `json:"segment_id"`
	Distance   float64   `json:"distance"`
	Snippet    string    `json:"snippet"`
	Location   string    `json:"location"`
	CapturedAt time.Time `json:"captured_at"`
	MatchedAt  time.Time `json:"matched_at"`
}

// NewAlertTriggeredMessage 由触发记录构建事件
func NewAlertTriggeredMessage(t *entity.AlertTrigger) *AlertTriggeredMessage {
	return &AlertTriggeredMessage{
		TriggerID:  t.ID,
		RuleID:     t.RuleID,
		RuleQuery:  t.RuleQuery,
		SegmentID:  t.SegmentID,
		Distance:   t.Distance,
		Snippet:    t.Snippet,
		Location:   t.Location,
		CapturedAt: t.CapturedAt,
		MatchedAt:  t.MatchedAt,
	}
}
