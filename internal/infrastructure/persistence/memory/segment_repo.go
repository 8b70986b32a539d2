// Package memory 提供进程内仓储实现，用于测试与本地开发
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
)

// SegmentRepository 内存分段仓储
type SegmentRepository struct {
	mu       sync.RWMutex
	segments map[string]entity.Segment
}

// NewSegmentRepository 创建内存分段仓储
func NewSegmentRepository() *SegmentRepository {
	return &SegmentRepository{segments: make(map[string]entity.Segment)}
}

var _ repository.SegmentRepository = (*SegmentRepository)(nil)

// Create 创建分段
func (r *SegmentRepository) Create(_ context.Context, seg *entity.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[seg.ID] = *seg
	return nil
}

// Update 保存分段
func (r *SegmentRepository) Update(_ context.Context, seg *entity.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[seg.ID] = *seg
	return nil
}

// GetByID 获取分段
func (r *SegmentRepository) GetByID(_ context.Context, id string) (*entity.Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seg, ok := r.segments[id]
	if !ok {
		return nil, nil
	}
	return &seg, nil
}

// List 分页列出分段
func (r *SegmentRepository) List(_ context.Context, filter *repository.SegmentFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Segment], error) {
	r.mu.RLock()
	all := make([]*entity.Segment, 0, len(r.segments))
	for _, seg := range r.segments {
		if filter != nil {
			if filter.StreamID != "" && seg.StreamID != filter.StreamID {
				continue
			}
			if filter.State != "" && seg.State != filter.State {
				continue
			}
		}
		s := seg
		all = append(all, &s)
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b *entity.Segment) int { return b.StartedAt.Compare(a.StartedAt) })

	total := int64(len(all))
	start := min(pagination.Offset(), len(all))
	end := min(start+pagination.Limit(), len(all))
	return repository.NewPagedResult(all[start:end], total, pagination), nil
}

// ListUnfinished 未到终态的分段
func (r *SegmentRepository) ListUnfinished(_ context.Context, limit int) ([]*entity.Segment, error) {
	r.mu.RLock()
	out := make([]*entity.Segment, 0)
	for _, seg := range r.segments {
		if seg.State.IsTerminal() || seg.State == entity.SegmentStateRecording {
			continue
		}
		s := seg
		out = append(out, &s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *entity.Segment) int { return a.StartedAt.Compare(b.StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListStale 给定状态且长时间未更新的分段
func (r *SegmentRepository) ListStale(_ context.Context, states []entity.SegmentState, updatedBefore time.Time, limit int) ([]*entity.Segment, error) {
	r.mu.RLock()
	out := make([]*entity.Segment, 0)
	for _, seg := range r.segments {
		if !slices.Contains(states, seg.State) || !seg.UpdatedAt.Before(updatedBefore) {
			continue
		}
		s := seg
		out = append(out, &s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *entity.Segment) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteAll 删除全部分段
func (r *SegmentRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.segments))
	r.segments = make(map[string]entity.Segment)
	return n, nil
}
