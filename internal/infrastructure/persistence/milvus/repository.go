package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"video-sentinel/internal/application/index"
)

// SegmentVectorRepository 基于 Milvus 的分段向量仓储
type SegmentVectorRepository struct {
	client *Client
	dim    int
}

// NewSegmentVectorRepository 创建分段向量仓储
func NewSegmentVectorRepository(client *Client, dim int) *SegmentVectorRepository {
	return &SegmentVectorRepository{client: client, dim: dim}
}

var _ index.VectorRepository = (*SegmentVectorRepository)(nil)

// Backend 后端名称
func (r *SegmentVectorRepository) Backend() string { return "milvus" }

func (r *SegmentVectorRepository) ready() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// EnsureCollection 集合不存在时创建集合与 HNSW 索引，并加载到内存
func (r *SegmentVectorRepository) EnsureCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}

	exists, err := r.client.HasCollection(ctx, CollectionSegments)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		if err := r.createCollection(ctx); err != nil {
			return err
		}
		if err := r.createIndex(ctx); err != nil {
			return err
		}
	}
	return r.client.LoadCollection(ctx, CollectionSegments)
}

func (r *SegmentVectorRepository) createCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", CollectionSegments)))
	defer span.End()

	schema := SegmentsSchema(r.dim)
	schema.CollectionName = r.client.CollectionName(CollectionSegments)

	if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *SegmentVectorRepository) createIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", CollectionSegments)))
	defer span.End()

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, r.client.CollectionName(CollectionSegments), fieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Upsert 写入或覆盖分段向量
func (r *SegmentVectorRepository) Upsert(ctx context.Context, segmentID string, capturedAt time.Time, vector []float32) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.Upsert",
		trace.WithAttributes(attribute.String("segment_id", segmentID)))
	defer span.End()

	if len(vector) != r.dim {
		return fmt.Errorf("vector dimension %d does not match collection dimension %d", len(vector), r.dim)
	}

	idCol := entity.NewColumnVarChar(fieldSegmentID, []string{segmentID})
	timeCol := entity.NewColumnInt64(fieldCapturedAt, []int64{capturedAt.UnixMilli()})
	vectorCol := entity.NewColumnFloatVector(fieldVector, r.dim, [][]float32{vector})

	if _, err := r.client.milvus.Upsert(ctx, r.client.CollectionName(CollectionSegments), "", idCol, timeCol, vectorCol); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert segment vector: %w", err)
	}
	return nil
}

// Search 余弦相似度检索，Distance = 1 - score
func (r *SegmentVectorRepository) Search(ctx context.Context, vector []float32, filter index.VectorFilter, topK int) ([]index.VectorHit, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	if topK <= 0 {
		return nil, nil
	}

	ef := r.client.config.SearchEf
	if ef < topK {
		ef = max(topK, 64)
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		r.client.CollectionName(CollectionSegments),
		nil,
		BuildFilterExpr(filter),
		[]string{fieldSegmentID},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []index.VectorHit
	for _, result := range results {
		idCol, ok := result.Fields.GetColumn(fieldSegmentID).(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		ids := idCol.Data()
		for i := 0; i < result.ResultCount && i < len(ids); i++ {
			hits = append(hits, index.VectorHit{
				SegmentID: ids[i],
				Distance:  1 - float64(result.Scores[i]),
			})
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// DeleteAll 删除集合内全部向量
func (r *SegmentVectorRepository) DeleteAll(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteAll")
	defer span.End()

	exists, err := r.client.HasCollection(ctx, CollectionSegments)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil
	}

	if err := r.client.milvus.Delete(ctx, r.client.CollectionName(CollectionSegments), "", fieldSegmentID+` != ""`); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segment vectors: %w", err)
	}
	return nil
}

// BuildFilterExpr 构建 Milvus 布尔过滤表达式，[From, To) 以 Unix 毫秒比较
func BuildFilterExpr(filter index.VectorFilter) string {
	var parts []string
	if !filter.From.IsZero() {
		parts = append(parts, fmt.Sprintf("%s >= %d", fieldCapturedAt, filter.From.UnixMilli()))
	}
	if !filter.To.IsZero() {
		parts = append(parts, fmt.Sprintf("%s < %d", fieldCapturedAt, filter.To.UnixMilli()))
	}
	if len(filter.SegmentIDs) > 0 {
		quoted := make([]string, len(filter.SegmentIDs))
		for i, id := range filter.SegmentIDs {
			quoted[i] = strconv.Quote(id)
		}
		parts = append(parts, fmt.Sprintf("%s in [%s]", fieldSegmentID, strings.Join(quoted, ", ")))
	}
	return strings.Join(parts, " && ")
}
