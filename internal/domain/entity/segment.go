// Package entity 定义领域实体
package entity

import (
	"fmt"
	"time"
)

// SegmentState 分段处理状态
type SegmentState string

const (
	SegmentStateRecording SegmentState = "recording"
	SegmentStateClosed    SegmentState = "closed"
	SegmentStateUploaded  SegmentState = "uploaded"
	SegmentStateDescribed SegmentState = "described"
	SegmentStateIndexed   SegmentState = "indexed"
	SegmentStateFailed    SegmentState = "failed"
)

// IsTerminal 终态不再变更
func (s SegmentState) IsTerminal() bool {
	return s == SegmentStateIndexed || s == SegmentStateFailed
}

// 合法的正向迁移，failed 可由任意非终态进入
var segmentTransitions = map[SegmentState]SegmentState{
	SegmentStateRecording: SegmentStateClosed,
	SegmentStateClosed:    SegmentStateUploaded,
	SegmentStateUploaded:  SegmentStateDescribed,
	SegmentStateDescribed: SegmentStateIndexed,
}

// Segment 一段连续录制的视频
type Segment struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"id"`
	StreamID    string       `gorm:"type:varchar(128);not null;index:idx_segments_stream_started,priority:1" json:"stream_id"`
	StreamURL   string       `gorm:"type:text;not null" json:"stream_url"`
	RecordingID string       `gorm:"type:uuid;index" json:"recording_id"`
	Sequence    int64        `gorm:"not null" json:"sequence"`
	StartedAt   time.Time    `gorm:"not null;index:idx_segments_stream_started,priority:2" json:"started_at"`
	DurationMs  int64        `gorm:"not null;default:0" json:"duration_ms"`
	LocalPath   string       `gorm:"type:text;not null" json:"local_path"`
	ObjectKey   string       `gorm:"type:text" json:"object_key,omitempty"`
	Location    string       `gorm:"type:text" json:"location,omitempty"`
	State       SegmentState `gorm:"type:varchar(16);not null;index" json:"state"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Embedding   []float32    `gorm:"-" json:"-"`
	Attempts    int          `gorm:"not null;default:0" json:"attempts"`
	LastError   string       `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}

// TableName GORM 表名
func (Segment) TableName() string { return "segments" }

// NewSegment 创建处于 recording 状态的分段
func NewSegment(id, streamID, streamURL, recordingID string, seq int64, startedAt time.Time, localPath string) *Segment {
	now := time.Now()
	return &Segment{
		ID:          id,
		StreamID:    streamID,
		StreamURL:   streamURL,
		RecordingID: recordingID,
		Sequence:    seq,
		StartedAt:   startedAt,
		LocalPath:   localPath,
		State:       SegmentStateRecording,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Duration 分段时长
func (s *Segment) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// EndedAt 分段结束时间（不含）
func (s *Segment) EndedAt() time.Time {
	return s.StartedAt.Add(s.Duration())
}

func (s *Segment) transition(to SegmentState) error {
	if s.State.IsTerminal() {
		return fmt.Errorf("segment %s is already %s", s.ID, s.State)
	}
	if to != SegmentStateFailed && segmentTransitions[s.State] != to {
		return fmt.Errorf("segment %s cannot move from %s to %s", s.ID, s.State, to)
	}
	s.State = to
	s.UpdatedAt = time.Now()
	if to.IsTerminal() {
		now := s.UpdatedAt
		s.FinishedAt = &now
	}
	return nil
}

// Close 完成录制，记录最终时长
func (s *Segment) Close(duration time.Duration) error {
	if err := s.transition(SegmentStateClosed); err != nil {
		return err
	}
	s.DurationMs = duration.Milliseconds()
	return nil
}

// MarkUploaded 已上传到对象存储
func (s *Segment) MarkUploaded(key, location string) error {
	if err := s.transition(SegmentStateUploaded); err != nil {
		return err
	}
	s.ObjectKey = key
	s.Location = location
	return nil
}

// MarkDescribed 已获得描述文本
func (s *Segment) MarkDescribed(description string) error {
	if err := s.transition(SegmentStateDescribed); err != nil {
		return err
	}
	s.Description = description
	return nil
}

// MarkIndexed 已写入索引
func (s *Segment) MarkIndexed() error {
	return s.transition(SegmentStateIndexed)
}

// Fail 标记为永久失败
func (s *Segment) Fail(reason error) error {
	if err := s.transition(SegmentStateFailed); err != nil {
		return err
	}
	if reason != nil {
		s.LastError = reason.Error()
	}
	return nil
}
