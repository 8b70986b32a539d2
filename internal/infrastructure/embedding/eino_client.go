package embedding

import (
	"context"
	"fmt"

	"video-sentinel/internal/config"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// NewEinoEmbedder 创建基于 Eino 的 Embedder（OpenAI 兼容协议）
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url is required")
	}

	ecfg := &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.Dimension > 0 {
		dims := cfg.Dimension
		ecfg.Dimensions = &dims
	}

	embedder, err := openai.NewEmbedder(ctx, ecfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}
