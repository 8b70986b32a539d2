package memory

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"video-sentinel/internal/application/index"
)

type vectorEntry struct {
	capturedAt time.Time
	vector     []float32
}

// VectorRepository 暴力余弦检索的内存向量后端
type VectorRepository struct {
	mu      sync.RWMutex
	entries map[string]vectorEntry
}

// NewVectorRepository 创建内存向量后端
func NewVectorRepository() *VectorRepository {
	return &VectorRepository{entries: make(map[string]vectorEntry)}
}

var _ index.VectorRepository = (*VectorRepository)(nil)

// Backend 后端名称
func (r *VectorRepository) Backend() string { return "memory" }

// Upsert 写入或覆盖向量
func (r *VectorRepository) Upsert(_ context.Context, segmentID string, capturedAt time.Time, vector []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[segmentID] = vectorEntry{capturedAt: capturedAt, vector: slices.Clone(vector)}
	return nil
}

// Search 余弦距离检索
func (r *VectorRepository) Search(_ context.Context, vector []float32, filter index.VectorFilter, topK int) ([]index.VectorHit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hits := make([]index.VectorHit, 0, len(r.entries))
	for id, e := range r.entries {
		if len(filter.SegmentIDs) > 0 && !slices.Contains(filter.SegmentIDs, id) {
			continue
		}
		if !filter.From.IsZero() && e.capturedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.capturedAt.Before(filter.To) {
			continue
		}
		hits = append(hits, index.VectorHit{SegmentID: id, Distance: CosineDistance(vector, e.vector)})
	}

	slices.SortFunc(hits, func(a, b index.VectorHit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteAll 清空
func (r *VectorRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]vectorEntry)
	return nil
}

// CosineDistance 1 - cos(a, b)，零向量距离为 1
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
