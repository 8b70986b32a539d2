// Package vlm 视觉语言模型描述客户端
package vlm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion 模型返回空内容
var ErrEmptyCompletion = errors.New("vlm returned an empty completion")

// Request 描述请求
type Request struct {
	// Provider llm.providers 中的名称（ingest / analyze）
	Provider string
	VideoURL string
	Prompt   string
}

// Describer 对一个视频分段生成文本描述
type Describer interface {
	Describe(ctx context.Context, req Request) (string, error)
}
