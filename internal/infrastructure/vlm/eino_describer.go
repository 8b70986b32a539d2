package vlm

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"video-sentinel/internal/infrastructure/eino/callback"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/tracer"
)

// ModelProvider 按名称获取 ChatModel，由 llm.Registry 实现
type ModelProvider interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// EinoDescriber 基于 Eino ChatModel 的描述客户端（OpenAI 兼容多模态接口）
type EinoDescriber struct {
	models ModelProvider
}

var _ Describer = (*EinoDescriber)(nil)

// NewEinoDescriber 创建描述客户端
func NewEinoDescriber(models ModelProvider) *EinoDescriber {
	return &EinoDescriber{models: models}
}

// Describe 发送 video_url + 文本提示，返回模型描述
func (d *EinoDescriber) Describe(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.Tracer("vlm").Start(ctx, "vlm.Describe")
	span.SetAttributes(
		attribute.String("llm.provider", req.Provider),
		attribute.String("video.url", req.VideoURL),
	)
	defer span.End()

	if req.VideoURL == "" {
		return "", apperrors.Permanent(errors.New("video url is empty"), "invalid describe request")
	}

	chatModel, err := d.models.Get(ctx, req.Provider)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeLLMProviderError, "failed to get chat model")
	}

	ctx = callback.WithProvider(ctx, req.Provider)
	msg, err := chatModel.Generate(ctx, BuildMessages(req))
	if err != nil {
		tracer.RecordError(span, err)
		logger.Warn(ctx, "vlm describe failed", "provider", req.Provider, "error", err.Error())
		return "", apperrors.Classify(err, "vlm describe failed")
	}

	text := ""
	if msg != nil {
		text = strings.TrimSpace(msg.Content)
	}
	if text == "" {
		return "", apperrors.Permanent(ErrEmptyCompletion, "vlm describe failed")
	}
	return text, nil
}

// BuildMessages 构造多模态用户消息
func BuildMessages(req Request) []*schema.Message {
	return []*schema.Message{
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type:     schema.ChatMessagePartTypeVideoURL,
					VideoURL: &schema.ChatMessageVideoURL{URL: req.VideoURL},
				},
				{
					Type: schema.ChatMessagePartTypeText,
					Text: req.Prompt,
				},
			},
		},
	}
}
