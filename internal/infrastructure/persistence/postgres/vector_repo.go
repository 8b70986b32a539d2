package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"

	"video-sentinel/internal/application/index"
)

// segmentEmbedding segment_embeddings 表行
type segmentEmbedding struct {
	SegmentID  string          `gorm:"primaryKey;type:uuid"`
	CapturedAt time.Time       `gorm:"not null"`
	Embedding  pgvector.Vector `gorm:"not null"`
}

func (segmentEmbedding) TableName() string { return "segment_embeddings" }

// SegmentVectorRepository 基于 pgvector 的向量仓储
type SegmentVectorRepository struct {
	client *Client
}

var _ index.VectorRepository = (*SegmentVectorRepository)(nil)

// NewSegmentVectorRepository 创建 pgvector 向量仓储
func NewSegmentVectorRepository(client *Client) *SegmentVectorRepository {
	return &SegmentVectorRepository{client: client}
}

// Backend 后端名称
func (r *SegmentVectorRepository) Backend() string { return "pgvector" }

// Upsert 写入或覆盖分段向量
func (r *SegmentVectorRepository) Upsert(ctx context.Context, segmentID string, capturedAt time.Time, vector []float32) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentVectorRepository.Upsert")
	defer span.End()

	row := &segmentEmbedding{
		SegmentID:  segmentID,
		CapturedAt: capturedAt,
		Embedding:  pgvector.NewVector(vector),
	}

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "segment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"captured_at", "embedding"}),
	}).Create(row).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert segment embedding: %w", err)
	}
	return nil
}

// Search 余弦距离检索（<=> 运算符）
func (r *SegmentVectorRepository) Search(ctx context.Context, vector []float32, filter index.VectorFilter, topK int) ([]index.VectorHit, error) {
	ctx, span := tracer.Start(ctx, "postgres.SegmentVectorRepository.Search")
	defer span.End()

	var (
		where []string
		args  = []interface{}{pgvector.NewVector(vector)}
	)
	if !filter.From.IsZero() {
		where = append(where, "captured_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		where = append(where, "captured_at < ?")
		args = append(args, filter.To)
	}
	if len(filter.SegmentIDs) > 0 {
		where = append(where, "segment_id = ANY(?)")
		args = append(args, pq.Array(filter.SegmentIDs))
	}

	sql := "SELECT segment_id, embedding <=> ? AS distance FROM segment_embeddings"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY distance ASC LIMIT ?"
	args = append(args, topK)

	var rows []struct {
		SegmentID string
		Distance  float64
	}
	db := getDB(ctx, r.client.db)
	if err := db.Raw(sql, args...).Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search segment embeddings: %w", err)
	}

	hits := make([]index.VectorHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, index.VectorHit{SegmentID: row.SegmentID, Distance: row.Distance})
	}
	return hits, nil
}

// DeleteAll 清空向量表
func (r *SegmentVectorRepository) DeleteAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.SegmentVectorRepository.DeleteAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Exec("DELETE FROM segment_embeddings").Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segment embeddings: %w", err)
	}
	return nil
}
