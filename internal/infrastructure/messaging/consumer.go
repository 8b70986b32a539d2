package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/metrics"
)

const (
	readCount    = 10
	pendingBatch = 20
)

// MessageHandler 消息处理函数；返回错误时消息留在 PEL 中等待重试
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer Redis Stream 消费者组成员
// 失败的消息按退避重新认领，超过重试上限后进入死信队列
type Consumer struct {
	client        *redis.Client
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		// 其他实例崩溃后遗留的消息，空闲超过该时长才接管
		reclaimIdle: max(5*time.Minute, cfg.Backoff.Max*2),
		retryLimit:  cfg.RetryLimit,
		backoff:     cfg.Backoff,
		handlers:    make(map[string]MessageHandler),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// RegisterHandler 注册消息处理器，需在 Start 之前调用
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 创建消费者组（已存在时忽略）并启动消费循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费循环，并等待正在处理的消息结束
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	c.running = false
	c.mu.Unlock()
	<-c.doneCh
}

func (c *Consumer) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)

	log := logger.FromContext(ctx)
	log.Info("consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumerName,
	)
	defer log.Info("consumer stopped", "stream", c.stream)

	lastReclaim := time.Time{}
	for !c.stopped(ctx) {
		c.retryDue(ctx)
		if time.Since(lastReclaim) >= c.claimInterval {
			c.reclaimStale(ctx)
			lastReclaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    readCount,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || c.stopped(ctx) {
				continue
			}
			log.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, xmsg := range s.Messages {
				c.process(ctx, xmsg)
			}
		}
	}
}

// decode 解析 data 字段；格式错误的消息无法重试，直接确认丢弃
func decode(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", xmsg.ID, err)
	}
	return &msg, nil
}

// withMessageContext 把消息元数据注入日志上下文
func withMessageContext(ctx context.Context, msg *Message) context.Context {
	if msg.StreamID != "" {
		ctx = logger.WithContext(ctx, logger.StreamIDKey, msg.StreamID)
	}
	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	return ctx
}

func (c *Consumer) process(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.process",
		trace.WithAttributes(
			attribute.String("stream", string(c.stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decode(xmsg)
	if err != nil {
		logger.Error(ctx, "dropping malformed message", err)
		c.ack(ctx, xmsg.ID)
		return
	}
	ctx = withMessageContext(ctx, msg)
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("stream_id", msg.StreamID),
	)

	c.mu.RLock()
	handler, ok := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !ok {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.count("skipped")
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "message handler failed", err, "message_id", msg.ID)
		c.count("error")
		c.onFailure(ctx, xmsg.ID, msg, err)
		return
	}

	c.count("success")
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) count(result string) {
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), result).Inc()
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

// onFailure 未到上限时不确认，留给 retryDue 按退避重新认领
func (c *Consumer) onFailure(ctx context.Context, id string, msg *Message, cause error) {
	deliveries := c.deliveryCount(ctx, id)
	if deliveries >= c.retryLimit {
		logger.Warn(ctx, "message moved to DLQ after max retries",
			"message_id", msg.ID,
			"deliveries", deliveries,
		)
		c.deadLetter(ctx, msg, cause)
		c.ack(ctx, id)
		return
	}
	c.count("retry")
	logger.Info(ctx, "message left pending for retry",
		"message_id", msg.ID,
		"deliveries", deliveries,
	)
}

// deliveryCount XPENDING 中记录的投递次数
func (c *Consumer) deliveryCount(ctx context.Context, id string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}
