package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/metrics"
)

var errRetriesExhausted = errors.New("message exceeded max retries")

// pending 查询 PEL，consumer 为空时查询整个消费者组
func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	entries, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Start:    "-",
		End:      "+",
		Count:    pendingBatch,
		Consumer: consumer,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending messages", err, "stream", c.stream)
		}
		return nil
	}
	return entries
}

// claim 把消息转到本消费者名下；minIdle 防止与其他实例抢同一条
func (c *Consumer) claim(ctx context.Context, id string, minIdle time.Duration) []redis.XMessage {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", id)
		return nil
	}
	return claimed
}

// retryDue 本消费者名下退避时间已到的失败消息重新处理
func (c *Consumer) retryDue(ctx context.Context) {
	for _, p := range c.pending(ctx, c.consumerName) {
		deliveries := int(p.RetryCount)
		if deliveries >= c.retryLimit {
			c.claimToDLQ(ctx, p.ID, 0)
			continue
		}
		wait := c.backoff.CalculateBackoff(deliveries)
		if p.Idle < wait {
			continue
		}
		for _, xmsg := range c.claim(ctx, p.ID, wait) {
			c.process(ctx, xmsg)
		}
	}
}

// reclaimStale 接管其他消费者长时间未确认的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.consumerName || p.Idle < c.reclaimIdle {
			continue
		}
		if int(p.RetryCount) >= c.retryLimit {
			c.claimToDLQ(ctx, p.ID, c.reclaimIdle)
			continue
		}
		for _, xmsg := range c.claim(ctx, p.ID, c.reclaimIdle) {
			c.process(ctx, xmsg)
		}
	}
}

// claimToDLQ 认领超过重试上限的消息并移入死信队列
func (c *Consumer) claimToDLQ(ctx context.Context, id string, minIdle time.Duration) {
	for _, xmsg := range c.claim(ctx, id, minIdle) {
		if msg, err := decode(xmsg); err == nil {
			c.deadLetter(ctx, msg, errRetriesExhausted)
		}
		c.ack(ctx, xmsg.ID)
	}
}

// deadLetter 写入 dlq:<stream>，保留原始消息与最后一次错误
func (c *Consumer) deadLetter(ctx context.Context, msg *Message, cause error) {
	data, err := json.Marshal(map[string]interface{}{
		"original_stream": string(c.stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	if err != nil {
		logger.Error(ctx, "failed to marshal dead letter", err, "message_id", msg.ID)
		return
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream.DLQStream(),
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		logger.Error(ctx, "failed to write dead letter", fmt.Errorf("xadd %s: %w", c.stream.DLQStream(), err), "message_id", msg.ID)
		return
	}
	c.count("dead_letter")
}

// MonitorDLQ 每分钟上报消费积压，死信超过阈值时告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		c.reportLag(ctx)
		info, err := c.client.XInfoStream(ctx, c.stream.DLQStream()).Result()
		if err != nil {
			continue
		}
		if info.Length > alertThreshold {
			logger.Warn(ctx, "DLQ has pending messages",
				"stream", c.stream.DLQStream(),
				"count", info.Length,
			)
		}
	}
}

func (c *Consumer) reportLag(ctx context.Context) {
	groups, err := c.client.XInfoGroups(ctx, string(c.stream)).Result()
	if err != nil {
		return
	}
	for _, g := range groups {
		if g.Name == string(c.group) {
			metrics.RedisStreamLag.WithLabelValues(string(c.stream), g.Name).Set(float64(g.Lag))
		}
	}
}
