package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
)

// IndexRecordRepository 内存索引目录
type IndexRecordRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []entity.IndexRecord
}

// NewIndexRecordRepository 创建内存索引目录
func NewIndexRecordRepository() *IndexRecordRepository {
	return &IndexRecordRepository{}
}

var _ repository.IndexRecordRepository = (*IndexRecordRepository)(nil)

// Create 写入记录并分配自增 ID
func (r *IndexRecordRepository) Create(_ context.Context, rec *entity.IndexRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	stored := *rec
	stored.Embedding = nil
	r.records = append(r.records, stored)
	return nil
}

// ExistsBySegment 分段是否已有记录
func (r *IndexRecordRepository) ExistsBySegment(_ context.Context, segmentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.SegmentID == segmentID {
			return true, nil
		}
	}
	return false, nil
}

// GetBySegmentIDs 批量获取
func (r *IndexRecordRepository) GetBySegmentIDs(_ context.Context, segmentIDs []string) ([]*entity.IndexRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.IndexRecord, 0, len(segmentIDs))
	for _, rec := range r.records {
		if slices.Contains(segmentIDs, rec.SegmentID) {
			c := rec
			out = append(out, &c)
		}
	}
	return out, nil
}

// ListAfter 水位线之后的记录
func (r *IndexRecordRepository) ListAfter(_ context.Context, afterID int64, limit int) ([]*entity.IndexRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.IndexRecord, 0)
	for _, rec := range r.records {
		if rec.ID <= afterID {
			continue
		}
		c := rec
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListDates 去重日期（倒序）
func (r *IndexRecordRepository) ListDates(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dates := make([]string, 0)
	for _, rec := range r.records {
		if !slices.Contains(dates, rec.CapturedDate) {
			dates = append(dates, rec.CapturedDate)
		}
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates, nil
}

// Summarize 时间窗口统计
func (r *IndexRecordRepository) Summarize(_ context.Context, since time.Time) (*repository.IndexSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := &repository.IndexSummary{}
	for _, rec := range r.records {
		if rec.CapturedAt.Before(since) {
			continue
		}
		sum.Records++
		sum.DurationMs += rec.DurationMs
	}
	return sum, nil
}

// DeleteAll 删除全部记录，ID 序列不回退
func (r *IndexRecordRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.records))
	r.records = nil
	return n, nil
}
