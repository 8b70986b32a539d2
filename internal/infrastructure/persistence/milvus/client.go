// Package milvus 提供基于 Milvus 的分段向量后端
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"video-sentinel/internal/config"
)

var tracer = otel.Tracer("milvus")

// Client Milvus 客户端
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 创建 Milvus 客户端；配置了用户名与密码时启用鉴权
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	mc := client.Config{Address: cfg.Address()}
	if cfg.User != "" && cfg.Password != "" {
		mc.Username = cfg.User
		mc.Password = cfg.Password
	}

	milvusClient, err := client.NewClient(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", mc.Address, err)
	}
	return &Client{milvus: milvusClient, config: cfg}, nil
}

func (c *Client) Close() error {
	return c.milvus.Close()
}

// HealthCheck 就绪检查，以分段集合是否可查询为准
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck")
	defer span.End()

	ok, err := c.milvus.HasCollection(ctx, c.CollectionName(CollectionSegments))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("collection %s does not exist, run bootstrap first", c.CollectionName(CollectionSegments))
	}
	return nil
}

// CollectionName 获取带前缀的集合名称
func (c *Client) CollectionName(name string) string {
	if c.config != nil && c.config.CollectionPrefix != "" {
		return c.config.CollectionPrefix + "_" + name
	}
	return name
}

// HasCollection 检查集合是否存在
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	return c.milvus.HasCollection(ctx, c.CollectionName(name))
}

// LoadCollection 加载集合到内存，检索前必须完成
func (c *Client) LoadCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "milvus.LoadCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	if err := c.milvus.LoadCollection(ctx, c.CollectionName(name), false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}
