package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/sashabaranov/go-openai"

	"video-sentinel/internal/config"
	apperrors "video-sentinel/pkg/errors"
)

// OpenAIEmbedder 基于 go-openai 的 Embedder，实现 eino embedding.Embedder
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder 创建 go-openai Embedder
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api_key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// EmbedStrings 批量生成向量
func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.Transient(fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)), "embedding response mismatch")
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, apperrors.Transient(fmt.Errorf("embedding index %d out of range", d.Index), "embedding response mismatch")
		}
		vec := make([]float64, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float64(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.ClassifyStatus(err, apiErr.HTTPStatusCode, "embedding request failed")
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.ClassifyStatus(err, reqErr.HTTPStatusCode, "embedding request failed")
	}
	return apperrors.Classify(err, "embedding request failed")
}
