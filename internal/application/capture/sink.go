package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
	"video-sentinel/pkg/logger"
)

// SegmentSink 接收录制器产生的分段
type SegmentSink interface {
	// SegmentOpened 新分段开始写入
	SegmentOpened(ctx context.Context, seg *entity.Segment) error
	// SegmentClosed 分段已完成，交给摄取流水线
	SegmentClosed(ctx context.Context, seg *entity.Segment) error
	// SegmentDiscarded 分段没有任何数据
	SegmentDiscarded(ctx context.Context, seg *entity.Segment, reason error) error
}

// Notifier 通知摄取侧有分段完成
type Notifier interface {
	NotifySegmentClosed(ctx context.Context, seg *entity.Segment) error
}

// RetryPolicy 交接失败时的重试
type RetryPolicy interface {
	Retry(ctx context.Context, stage string, op func(ctx context.Context) error) error
	// Budget 重试耗尽前的最长耗时
	Budget() time.Duration
}

// maxBacklog 未通知分段的上限，超出时丢弃最旧的，由摄取侧巡检补交
const maxBacklog = 256

// RepositorySink 持久化分段状态后按顺序通知摄取侧
// 通知失败的分段留在 backlog 中，后续分段不会越过它先被通知
type RepositorySink struct {
	segments repository.SegmentRepository
	notifier Notifier
	retry    RetryPolicy

	mu      sync.Mutex
	backlog []*entity.Segment
}

// NewRepositorySink 创建分段接收器；retry 为 nil 时只尝试一次
func NewRepositorySink(segments repository.SegmentRepository, notifier Notifier, retry RetryPolicy) *RepositorySink {
	return &RepositorySink{segments: segments, notifier: notifier, retry: retry}
}

var _ SegmentSink = (*RepositorySink)(nil)

func (s *RepositorySink) SegmentOpened(ctx context.Context, seg *entity.Segment) error {
	if err := s.segments.Create(ctx, seg); err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}
	return nil
}

func (s *RepositorySink) SegmentClosed(ctx context.Context, seg *entity.Segment) error {
	if err := s.do(ctx, "persist_closed", func(ctx context.Context) error {
		return s.segments.Update(ctx, seg)
	}); err != nil {
		s.abandon(ctx, seg, err)
		return fmt.Errorf("failed to update segment: %w", err)
	}
	if s.notifier == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *seg
	s.backlog = append(s.backlog, &cp)
	if n := len(s.backlog) - maxBacklog; n > 0 {
		logger.Warn(ctx, "handoff backlog full, leaving oldest segments to the ingest sweep", "dropped", n)
		s.backlog = s.backlog[n:]
	}
	return s.flushLocked(ctx)
}

// flushLocked 按关闭顺序通知，遇到失败即停
func (s *RepositorySink) flushLocked(ctx context.Context) error {
	for len(s.backlog) > 0 {
		head := s.backlog[0]
		if err := s.do(ctx, "notify_closed", func(ctx context.Context) error {
			return s.notifier.NotifySegmentClosed(ctx, head)
		}); err != nil {
			return fmt.Errorf("failed to notify segment closed (%d pending): %w", len(s.backlog), err)
		}
		s.backlog = s.backlog[1:]
	}
	return nil
}

// Pending 已关闭但尚未成功通知的分段数
func (s *RepositorySink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

// abandon 关闭状态无法保存时显式标记失败，避免行停留在 recording
func (s *RepositorySink) abandon(ctx context.Context, seg *entity.Segment, cause error) {
	if err := seg.Fail(fmt.Errorf("failed to persist closed segment: %w", cause)); err != nil {
		logger.Warn(ctx, "cannot mark segment failed", "error", err.Error())
		return
	}
	if err := s.do(ctx, "persist_failed", func(ctx context.Context) error {
		return s.segments.Update(ctx, seg)
	}); err != nil {
		logger.Error(ctx, "failed to persist abandoned segment, left to the ingest sweep", errors.Join(cause, err))
	}
}

func (s *RepositorySink) SegmentDiscarded(ctx context.Context, seg *entity.Segment, reason error) error {
	if err := seg.Fail(reason); err != nil {
		return err
	}
	return s.segments.Update(ctx, seg)
}

// StopBudget 最后一个分段交接可能占用的时间
func (s *RepositorySink) StopBudget() time.Duration {
	if s.retry == nil {
		return 0
	}
	// 落库与通知各一轮重试
	return 2 * s.retry.Budget()
}

func (s *RepositorySink) do(ctx context.Context, stage string, op func(ctx context.Context) error) error {
	if s.retry == nil {
		return op(ctx)
	}
	return s.retry.Retry(ctx, stage, op)
}
