package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
)

// SegmentRepository 分段仓储实现
type SegmentRepository struct {
	client *Client
}

var _ repository.SegmentRepository = (*SegmentRepository)(nil)

// NewSegmentRepository 创建分段仓储
func NewSegmentRepository(client *Client) *SegmentRepository {
	return &SegmentRepository{client: client}
}

// Create 创建分段
func (r *SegmentRepository) Create(ctx context.Context, seg *entity.Segment) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(seg).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create segment: %w", err)
	}
	return nil
}

// Update 保存分段
func (r *SegmentRepository) Update(ctx context.Context, seg *entity.Segment) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(seg).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update segment: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取分段
func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var seg entity.Segment
	if err := db.First(&seg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &seg, nil
}

// List 分页列出分段
func (r *SegmentRepository) List(ctx context.Context, filter *repository.SegmentFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Segment], error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Segment{})

	if filter != nil {
		if filter.StreamID != "" {
			query = query.Where("stream_id = ?", filter.StreamID)
		}
		if filter.State != "" {
			query = query.Where("state = ?", filter.State)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count segments: %w", err)
	}

	var segments []*entity.Segment
	if err := query.Order("started_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&segments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	return repository.NewPagedResult(segments, total, pagination), nil
}

// ListUnfinished 获取需要恢复处理的分段
func (r *SegmentRepository) ListUnfinished(ctx context.Context, limit int) ([]*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.ListUnfinished")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var segments []*entity.Segment
	if err := db.Where("state IN ?", []entity.SegmentState{
		entity.SegmentStateClosed,
		entity.SegmentStateUploaded,
		entity.SegmentStateDescribed,
	}).
		Order("started_at ASC, sequence ASC").
		Limit(limit).
		Find(&segments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list unfinished segments: %w", err)
	}
	return segments, nil
}

// ListStale 给定状态且 updated_at 早于 updatedBefore 的分段
func (r *SegmentRepository) ListStale(ctx context.Context, states []entity.SegmentState, updatedBefore time.Time, limit int) ([]*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.ListStale")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var segments []*entity.Segment
	if err := db.Where("state IN ? AND updated_at < ?", states, updatedBefore).
		Order("started_at ASC, sequence ASC").
		Limit(limit).
		Find(&segments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stale segments: %w", err)
	}
	return segments, nil
}

// DeleteAll 删除全部分段
func (r *SegmentRepository) DeleteAll(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentRepository.DeleteAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Where("1 = 1").Delete(&entity.Segment{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete segments: %w", result.Error)
	}
	return result.RowsAffected, nil
}
