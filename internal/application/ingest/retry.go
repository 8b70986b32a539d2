// Package ingest 驱动分段经过 上传 → 描述 → 向量化 → 索引
package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"video-sentinel/internal/config"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/metrics"
)

// Policy 单个阶段的重试策略
type Policy struct {
	MaxAttempts   int
	Initial       time.Duration
	Max           time.Duration
	Multiplier    float64
	CapacityDelay time.Duration
	// StepTimeout 单次外部调用的超时
	StepTimeout time.Duration
}

// PolicyFromConfig 从配置构建重试策略
func PolicyFromConfig(cfg *config.IngestConfig) Policy {
	p := Policy{
		MaxAttempts:   cfg.MaxAttempts,
		Initial:       cfg.Backoff.Initial,
		Max:           cfg.Backoff.Max,
		Multiplier:    cfg.Backoff.Multiplier,
		CapacityDelay: cfg.CapacityDelay,
		StepTimeout:   cfg.StepTimeout,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Initial <= 0 {
		p.Initial = time.Second
	}
	if p.Max <= 0 {
		p.Max = 30 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.StepTimeout <= 0 {
		p.StepTimeout = 2 * time.Minute
	}
	return p
}

// capacityBackOff 限流错误至少等待 CapacityDelay
type capacityBackOff struct {
	exp   *backoff.ExponentialBackOff
	delay time.Duration
	last  error
}

func (b *capacityBackOff) NextBackOff() time.Duration {
	next := b.exp.NextBackOff()
	if apperrors.IsCapacity(b.last) && next < b.delay {
		return b.delay
	}
	return next
}

func (b *capacityBackOff) Reset() {
	b.exp.Reset()
	b.last = nil
}

func (p Policy) backOff() *capacityBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.MaxInterval = p.Max
	exp.Multiplier = p.Multiplier
	return &capacityBackOff{exp: exp, delay: p.CapacityDelay}
}

// Do 执行 op，可重试错误按退避重试直到上限；不可重试错误立即返回
// 返回实际尝试次数
func Do[T any](ctx context.Context, p Policy, stage string, op func(ctx context.Context) (T, error)) (T, int, error) {
	b := p.backOff()
	attempts := 0

	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, p.StepTimeout)
		defer cancel()

		v, err := op(callCtx)
		if err == nil {
			return v, nil
		}
		if callCtx.Err() != nil && ctx.Err() == nil && !apperrors.IsAppError(err) {
			err = apperrors.Transient(err, stage+" timed out")
		}
		b.last = err
		if !apperrors.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			kind := apperrors.Kind(err)
			metrics.IngestRetriesTotal.WithLabelValues(stage, kind).Inc()
			logger.Warn(ctx, "ingest step failed, retrying",
				"stage", stage,
				"attempt", attempts,
				"kind", kind,
				"next_backoff", next,
				"error", err.Error(),
			)
		}),
	)
	return result, attempts, err
}

// Retry 按策略重试无返回值的操作
func (p Policy) Retry(ctx context.Context, stage string, op func(ctx context.Context) error) error {
	_, _, err := Do(ctx, p, stage, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Budget 重试耗尽前的最长耗时：每次调用的超时加上各次退避（含随机抖动上限）
func (p Policy) Budget() time.Duration {
	total := time.Duration(p.MaxAttempts) * p.StepTimeout
	wait := p.Initial
	for i := 1; i < p.MaxAttempts; i++ {
		step := min(wait, p.Max)
		jittered := time.Duration(float64(step) * (1 + backoff.DefaultRandomizationFactor))
		total += max(jittered, p.CapacityDelay)
		wait = time.Duration(float64(wait) * p.Multiplier)
	}
	return total
}

// HandoffPolicy 录制侧交接分段的重试策略，沿用摄取退避但收紧单次超时
func HandoffPolicy(cfg *config.IngestConfig) Policy {
	p := PolicyFromConfig(cfg)
	p.StepTimeout = min(p.StepTimeout, handoffStepTimeout)
	p.Max = min(p.Max, handoffMaxBackoff)
	p.CapacityDelay = 0
	return p
}

const (
	handoffStepTimeout = 10 * time.Second
	handoffMaxBackoff  = 5 * time.Second
)
