// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"video-sentinel/internal/domain/entity"
)

// SegmentFilter 分段过滤条件
type SegmentFilter struct {
	StreamID string
	State    entity.SegmentState
}

// SegmentRepository 分段仓储接口
type SegmentRepository interface {
	// Create 创建分段
	Create(ctx context.Context, seg *entity.Segment) error

	// Update 保存分段状态
	Update(ctx context.Context, seg *entity.Segment) error

	// GetByID 根据 ID 获取分段，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Segment, error)

	// List 分页列出分段（按开始时间倒序）
	List(ctx context.Context, filter *SegmentFilter, pagination Pagination) (*PagedResult[*entity.Segment], error)

	// ListUnfinished 获取未到终态且已结束录制的分段（按开始时间正序）
	ListUnfinished(ctx context.Context, limit int) ([]*entity.Segment, error)

	// ListStale 获取处于给定状态且 updatedBefore 之前未再更新的分段（按开始时间正序）
	ListStale(ctx context.Context, states []entity.SegmentState, updatedBefore time.Time, limit int) ([]*entity.Segment, error)

	// DeleteAll 删除全部分段
	DeleteAll(ctx context.Context) (int64, error)
}
