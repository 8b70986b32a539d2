package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		msg.SetMetadata("request_id", reqID)
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		msg.SetMetadata("trace_id", sc.TraceID().String())
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishSegmentClosed 发布分段关闭事件
func (p *Producer) PublishSegmentClosed(ctx context.Context, evt *SegmentClosedMessage) (string, error) {
	msg, err := NewMessage(evt.SegmentID, TypeSegmentClosed, evt.StreamID, evt)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("sequence", strconv.FormatInt(evt.Sequence, 10))
	return p.Publish(ctx, StreamSegmentClosed, msg)
}

// PublishAlertTriggered 发布告警触发事件
func (p *Producer) PublishAlertTriggered(ctx context.Context, evt *AlertTriggeredMessage) (string, error) {
	msg, err := NewMessage(evt.TriggerID, TypeAlertTriggered, "", evt)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("rule_id", evt.RuleID)
	return p.Publish(ctx, StreamAlertTriggered, msg)
}

// NotifySegmentClosed 把录制器关闭的分段投递给摄取 worker
func (p *Producer) NotifySegmentClosed(ctx context.Context, seg *entity.Segment) error {
	_, err := p.PublishSegmentClosed(ctx, NewSegmentClosedMessage(seg))
	return err
}

// NotifyAlertTriggered 投递告警触发事件
func (p *Producer) NotifyAlertTriggered(ctx context.Context, trigger *entity.AlertTrigger) error {
	_, err := p.PublishAlertTriggered(ctx, NewAlertTriggeredMessage(trigger))
	return err
}
