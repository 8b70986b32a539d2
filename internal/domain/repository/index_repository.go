package repository

import (
	"context"
	"time"

	"video-sentinel/internal/domain/entity"
)

// IndexSummary 时间窗口内的索引统计
type IndexSummary struct {
	Records    int64
	DurationMs int64
}

// IndexRecordRepository 索引记录目录接口
type IndexRecordRepository interface {
	// Create 写入记录并回填自增 ID
	Create(ctx context.Context, rec *entity.IndexRecord) error

	// ExistsBySegment 分段是否已有记录
	ExistsBySegment(ctx context.Context, segmentID string) (bool, error)

	// GetBySegmentIDs 批量获取记录
	GetBySegmentIDs(ctx context.Context, segmentIDs []string) ([]*entity.IndexRecord, error)

	// ListAfter 获取 ID 大于水位线的记录（按 ID 正序）
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*entity.IndexRecord, error)

	// ListDates 有记录的日历日期（去重，倒序）
	ListDates(ctx context.Context) ([]string, error)

	// Summarize 统计 [since, now) 内的记录数和总时长
	Summarize(ctx context.Context, since time.Time) (*IndexSummary, error)

	// DeleteAll 删除全部记录
	DeleteAll(ctx context.Context) (int64, error)
}
