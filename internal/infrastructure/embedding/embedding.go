// Package embedding 提供文本向量化实现（eino / go-openai / 本地哈希）
package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"

	"video-sentinel/internal/config"
	apperrors "video-sentinel/pkg/errors"
)

// NewEmbedder 按 provider 创建 Embedder
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "", "eino":
		return NewEinoEmbedder(ctx, cfg)
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "hashing":
		return NewHashingEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}

// Embed 计算单条文本向量并转换为 float32
func Embed(ctx context.Context, e embedding.Embedder, text string) ([]float32, error) {
	if e == nil {
		return nil, apperrors.New(apperrors.CodeEmbeddingFailed, "embedder is not configured")
	}
	vecs, err := e.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, apperrors.Classify(err, "failed to embed text")
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, apperrors.Transient(fmt.Errorf("got %d vectors", len(vecs)), "empty embedding response")
	}
	return ToFloat32(vecs[0]), nil
}

// ToFloat32 向量精度转换
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
