package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
)

// IndexRecordRepository 索引目录仓储实现
type IndexRecordRepository struct {
	client *Client
}

var _ repository.IndexRecordRepository = (*IndexRecordRepository)(nil)

// NewIndexRecordRepository 创建索引目录仓储
func NewIndexRecordRepository(client *Client) *IndexRecordRepository {
	return &IndexRecordRepository{client: client}
}

// Create 写入记录，ID 由 bigserial 回填
func (r *IndexRecordRepository) Create(ctx context.Context, rec *entity.IndexRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.IndexRecordRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(rec).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index record: %w", err)
	}
	return nil
}

// ExistsBySegment 分段是否已有记录
func (r *IndexRecordRepository) ExistsBySegment(ctx context.Context, segmentID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.IndexRecordRepository.ExistsBySegment")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.IndexRecord{}).Where("segment_id = ?", segmentID).Count(&count).Error; err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check index record: %w", err)
	}
	return count > 0, nil
}

// GetBySegmentIDs 批量获取记录
func (r *IndexRecordRepository) GetBySegmentIDs(ctx context.Context, segmentIDs []string) ([]*entity.IndexRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.IndexRecordRepository.GetBySegmentIDs")
	defer span.End()

	if len(segmentIDs) == 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	var records []*entity.IndexRecord
	if err := db.Where("segment_id = ANY(?)", pq.Array(segmentIDs)).Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get index records: %w", err)
	}
	return records, nil
}

// ListAfter 获取水位线之后的记录
func (r *IndexRecordRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*entity.IndexRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.IndexRecordRepository.ListAfter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var records []*entity.IndexRecord
	if err := db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list index records: %w", err)
	}
	return records, nil
}

// ListDates 有记录的日期（倒序）
func (r *IndexRecordRepository) ListDates(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.IndexRecordRepository.ListDates")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var dates []string
	if err := db.Model(&entity.IndexRecord{}).
		Distinct("captured_date").
		Order("captured_date DESC").
		Pluck("captured_date", &dates).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list index dates: %w", err)
	}
	return dates, nil
}

// Summarize 统计时间窗口内的记录数与总时长
func (r *IndexRecordRepository) Summarize(ctx context.Context, since time.Time) (*repository.IndexSummary, error) {
	ctx, span := tracer.Start(ctx, "postgres.IndexRecordRepository.Summarize")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var summary repository.IndexSummary
	if err := db.Model(&entity.IndexRecord{}).
		Select("COUNT(*) AS records, COALESCE(SUM(duration_ms), 0) AS duration_ms").
		Where("captured_at >= ?", since).
		Scan(&summary).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to summarize index records: %w", err)
	}
	return &summary, nil
}

// DeleteAll 删除全部记录；bigserial 不重置，水位线保持有效
func (r *IndexRecordRepository) DeleteAll(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.IndexRecordRepository.DeleteAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Where("1 = 1").Delete(&entity.IndexRecord{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete index records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
