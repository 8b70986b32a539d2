package postgres

import (
	"context"
	"fmt"

	"video-sentinel/internal/domain/entity"
)

// Migrate 创建业务表
func (c *Client) Migrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.Migrate")
	defer span.End()

	if err := c.db.WithContext(ctx).AutoMigrate(
		&entity.Segment{},
		&entity.IndexRecord{},
		&entity.AlertRule{},
		&entity.AlertTrigger{},
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// MigrateVector 启用 pgvector 并创建向量表与 HNSW 索引
func (c *Client) MigrateVector(ctx context.Context, dimension int) error {
	ctx, span := tracer.Start(ctx, "postgres.MigrateVector")
	defer span.End()

	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS segment_embeddings (
	segment_id uuid PRIMARY KEY,
	captured_at timestamptz NOT NULL,
	embedding vector(%d) NOT NULL
)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_segment_embeddings_captured_at ON segment_embeddings (captured_at)",
		"CREATE INDEX IF NOT EXISTS idx_segment_embeddings_hnsw ON segment_embeddings USING hnsw (embedding vector_cosine_ops)",
	}
	for _, stmt := range stmts {
		if err := c.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to migrate vector schema: %w", err)
		}
	}
	return nil
}
