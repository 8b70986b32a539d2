package ingest

import (
	"context"

	"video-sentinel/internal/infrastructure/messaging"
	apperrors "video-sentinel/pkg/errors"
)

// HandleSegmentClosed 消费 segment_closed 事件并提交分段
// 入队即确认，中途崩溃的分段由 Resume 补齐
func (c *Coordinator) HandleSegmentClosed(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.SegmentClosedMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return apperrors.Permanent(err, "malformed segment_closed payload")
	}
	seg, err := payload.Segment()
	if err != nil {
		return apperrors.Permanent(err, "invalid segment_closed payload")
	}
	return c.Submit(ctx, seg)
}
