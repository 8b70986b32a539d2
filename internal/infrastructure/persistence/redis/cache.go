package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"video-sentinel/pkg/logger"
)

// Cache 以 JSON 存储的读穿缓存，目前用于查询文本的向量
type Cache struct {
	client *Client
	group  singleflight.Group
}

// NewCache 创建缓存
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// GetOrLoad 命中直接返回；未命中时同 key 的并发请求只调用一次 loader
// Redis 读写失败只记录日志，结果仍由 loader 提供
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "cache.GetOrLoad",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	}
	if !IsNil(err) {
		span.RecordError(err)
		logger.Warn(ctx, "cache read failed, loading directly", "key", key, "error", err.Error())
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, shared := c.group.Do(key, func() (any, error) {
		data, err := loader()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cache value: %w", err)
		}
		if err := c.client.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
			logger.Warn(ctx, "cache write failed", "key", key, "error", err.Error())
		}
		return raw, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.([]byte), nil
}
