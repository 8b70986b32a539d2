package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// Cache 缓存读取接口，由 redis.Cache 实现
type Cache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, error)
}

// CachedEmbedder 为单条查询文本的向量提供缓存（规则、检索词会被反复计算）
type CachedEmbedder struct {
	inner     embedding.Embedder
	cache     Cache
	namespace string
	ttl       time.Duration
}

var _ embedding.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder 创建带缓存的 Embedder，cache 为空时直接透传
func NewCachedEmbedder(inner embedding.Embedder, cache Cache, model string, ttl time.Duration) embedding.Embedder {
	if cache == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedEmbedder{inner: inner, cache: cache, namespace: "emb:" + model + ":", ttl: ttl}
}

// EmbedStrings 逐条走缓存
func (c *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		key := c.namespace + hex.EncodeToString(sum[:])

		raw, err := c.cache.GetOrLoad(ctx, key, c.ttl, func() (any, error) {
			vecs, err := c.inner.EmbedStrings(ctx, []string{text}, opts...)
			if err != nil {
				return nil, err
			}
			if len(vecs) != 1 {
				return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
			}
			return vecs[0], nil
		})
		if err != nil {
			return nil, err
		}

		var vec []float64
		if err := json.Unmarshal(raw, &vec); err != nil {
			return nil, fmt.Errorf("failed to decode cached embedding: %w", err)
		}
		out[i] = vec
	}
	return out, nil
}
