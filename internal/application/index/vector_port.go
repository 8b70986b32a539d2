package index

import (
	"context"
	"time"
)

// VectorRepository 定义索引对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（Milvus / pgvector / 内存）。
type VectorRepository interface {
	// Backend 后端名称，用于指标标签
	Backend() string
	Upsert(ctx context.Context, segmentID string, capturedAt time.Time, vector []float32) error
	Search(ctx context.Context, vector []float32, filter VectorFilter, topK int) ([]VectorHit, error)
	DeleteAll(ctx context.Context) error
}

// VectorFilter 检索过滤条件，零值时间表示不限
type VectorFilter struct {
	From       time.Time
	To         time.Time
	SegmentIDs []string
}

// VectorHit 检索命中，Distance 为余弦距离（越小越相似）
type VectorHit struct {
	SegmentID string
	Distance  float64
}
