// Package index 组合目录（Postgres）与向量后端，提供分段检索能力
package index

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/metrics"
)

var tracer = otel.Tracer("index")

// SearchQuery 相似度检索参数
type SearchQuery struct {
	Vector []float32
	// [From, To)，零值表示不限
	From       time.Time
	To         time.Time
	SegmentIDs []string
	Limit      int
	// MaxDistance 大于该距离的结果被丢弃，<=0 表示不过滤
	MaxDistance float64
}

// Hit 检索结果
type Hit struct {
	Record   *entity.IndexRecord
	Distance float64
}

// Index 可检索的分段索引
// 进程内写入由 mu 串行化；跨进程只有持有摄取租约的 worker 调用 Put，读取不加锁
type Index struct {
	records repository.IndexRecordRepository
	vectors VectorRepository

	mu sync.Mutex
}

// New 创建索引
func New(records repository.IndexRecordRepository, vectors VectorRepository) *Index {
	return &Index{records: records, vectors: vectors}
}

// Backend 向量后端名称
func (i *Index) Backend() string {
	return i.vectors.Backend()
}

// Put 写入一条记录；同一分段已存在记录时返回 false
func (i *Index) Put(ctx context.Context, rec *entity.IndexRecord) (bool, error) {
	ctx, span := tracer.Start(ctx, "index.Put")
	span.SetAttributes(attribute.String("segment.id", rec.SegmentID))
	defer span.End()

	if len(rec.Embedding) == 0 {
		return false, apperrors.Permanent(ErrEmptyEmbedding, "failed to index segment")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	exists, err := i.records.ExistsBySegment(ctx, rec.SegmentID)
	if err != nil {
		span.RecordError(err)
		return false, apperrors.Transient(err, "failed to check index record")
	}
	if exists {
		return false, nil
	}

	// 先写向量再写目录：目录行是提交点，孤立向量在检索时被忽略
	if err := i.vectors.Upsert(ctx, rec.SegmentID, rec.CapturedAt, rec.Embedding); err != nil {
		span.RecordError(err)
		return false, apperrors.Transient(err, "failed to upsert segment vector")
	}
	if err := i.records.Create(ctx, rec); err != nil {
		span.RecordError(err)
		return false, apperrors.Transient(err, "failed to create index record")
	}

	metrics.IndexRecordsTotal.Inc()
	return true, nil
}

// Search 相似度检索，按距离升序、同距离按时间倒序
func (i *Index) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "index.Search")
	defer span.End()

	if q.Limit <= 0 || len(q.Vector) == 0 {
		return nil, nil
	}

	topK := q.Limit
	if len(q.SegmentIDs) > topK {
		topK = len(q.SegmentIDs)
	}

	start := time.Now()
	vecHits, err := i.vectors.Search(ctx, q.Vector, VectorFilter{
		From:       q.From,
		To:         q.To,
		SegmentIDs: q.SegmentIDs,
	}, topK)
	metrics.IndexSearchDuration.WithLabelValues(i.vectors.Backend()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IndexSearchTotal.WithLabelValues(i.vectors.Backend(), "error").Inc()
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeSearchFailed, "failed to search index")
	}
	metrics.IndexSearchTotal.WithLabelValues(i.vectors.Backend(), "success").Inc()

	distances := make(map[string]float64, len(vecHits))
	ids := make([]string, 0, len(vecHits))
	for _, h := range vecHits {
		if q.MaxDistance > 0 && h.Distance > q.MaxDistance {
			continue
		}
		if _, dup := distances[h.SegmentID]; dup {
			continue
		}
		distances[h.SegmentID] = h.Distance
		ids = append(ids, h.SegmentID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := i.records.GetBySegmentIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load index records")
	}

	hits := make([]Hit, 0, len(records))
	for _, rec := range records {
		if !q.From.IsZero() && rec.CapturedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !rec.CapturedAt.Before(q.To) {
			continue
		}
		hits = append(hits, Hit{Record: rec, Distance: distances[rec.SegmentID]})
	}

	SortHits(hits)
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	span.SetAttributes(attribute.Int("index.hits", len(hits)))
	return hits, nil
}

// SortHits 距离升序，同距离时较新的在前
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return b.Record.CapturedAt.Compare(a.Record.CapturedAt)
	})
}

// ListAfter 水位线之后的记录
func (i *Index) ListAfter(ctx context.Context, afterID int64, limit int) ([]*entity.IndexRecord, error) {
	return i.records.ListAfter(ctx, afterID, limit)
}

// Dates 有记录的日期（倒序）
func (i *Index) Dates(ctx context.Context) ([]string, error) {
	return i.records.ListDates(ctx)
}

// Summarize 时间窗口统计
func (i *Index) Summarize(ctx context.Context, since time.Time) (*repository.IndexSummary, error) {
	return i.records.Summarize(ctx, since)
}

// Clear 删除全部记录与向量
func (i *Index) Clear(ctx context.Context) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.vectors.DeleteAll(ctx); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to clear vectors")
	}
	n, err := i.records.DeleteAll(ctx)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to clear index records")
	}
	return n, nil
}
