// Package alert 按水位线增量评估常驻告警规则
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"video-sentinel/internal/application/index"
	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
	embedclient "video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/metrics"
)

var tracer = otel.Tracer("alert")

// 规则文本并发向量化的上限
const ruleEmbedConcurrency = 4

// Notifier 新触发记录的投递
type Notifier interface {
	NotifyAlertTriggered(ctx context.Context, trigger *entity.AlertTrigger) error
}

// Options 评估参数
type Options struct {
	Interval          time.Duration
	BatchSize         int
	MaxBatchesPerTick int
	MaxDistance       float64
}

// OptionsFromConfig 从配置构建评估参数
func OptionsFromConfig(cfg *config.AlertConfig) Options {
	return Options{
		Interval:          cfg.Interval,
		BatchSize:         cfg.BatchSize,
		MaxBatchesPerTick: cfg.MaxBatchesPerTick,
		MaxDistance:       cfg.MaxDistance,
	}
}

// Result 单批评估结果
type Result struct {
	// Skipped 锁被其他实例持有
	Skipped   bool
	Records   int
	Triggers  int
	Watermark int64
}

// Engine 告警引擎
// 同一批次重复评估不会产生重复触发
type Engine struct {
	index     *index.Index
	rules     repository.AlertRuleRepository
	triggers  repository.AlertTriggerRepository
	watermark repository.WatermarkStore
	tx        repository.Transactor
	embedder  embedding.Embedder
	notifier  Notifier
	opts      Options

	now   func() time.Time
	newID func() string
}

// NewEngine 创建告警引擎，notifier 可以为 nil
func NewEngine(
	idx *index.Index,
	rules repository.AlertRuleRepository,
	triggers repository.AlertTriggerRepository,
	watermark repository.WatermarkStore,
	tx repository.Transactor,
	emb embedding.Embedder,
	notifier Notifier,
	opts Options,
) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxBatchesPerTick <= 0 {
		opts.MaxBatchesPerTick = 10
	}
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = 0.60
	}
	return &Engine{
		index:     idx,
		rules:     rules,
		triggers:  triggers,
		watermark: watermark,
		tx:        tx,
		embedder:  emb,
		notifier:  notifier,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Evaluate 评估水位线之后的一批记录
// 所有规则评估成功后才推进水位线
func (e *Engine) Evaluate(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "alert.Evaluate")
	defer span.End()

	unlock, ok, err := e.watermark.TryLock(ctx)
	if err != nil {
		metrics.AlertEvaluationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to acquire alert lock: %w", err)
	}
	if !ok {
		metrics.AlertEvaluationsTotal.WithLabelValues("skipped").Inc()
		return &Result{Skipped: true}, nil
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "failed to release alert lock", "error", err.Error())
		}
	}()

	res, err := e.evaluateBatch(ctx)
	if err != nil {
		span.RecordError(err)
		metrics.AlertEvaluationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("alert.records", res.Records),
		attribute.Int("alert.triggers", res.Triggers),
		attribute.Int64("alert.watermark", res.Watermark),
	)
	metrics.AlertEvaluationsTotal.WithLabelValues("success").Inc()
	return res, nil
}

func (e *Engine) evaluateBatch(ctx context.Context) (*Result, error) {
	wm, err := e.watermark.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark: %w", err)
	}
	res := &Result{Watermark: wm}

	batch, err := e.index.ListAfter(ctx, wm, e.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read index batch: %w", err)
	}
	if len(batch) == 0 {
		return res, nil
	}
	res.Records = len(batch)

	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled rules: %w", err)
	}

	ids := make([]string, 0, len(batch))
	maxID := wm
	for _, rec := range batch {
		ids = append(ids, rec.SegmentID)
		maxID = max(maxID, rec.ID)
	}

	vecs, err := e.embedRules(ctx, rules)
	if err != nil {
		return nil, err
	}

	var created []*entity.AlertTrigger
	for i, rule := range rules {
		triggers, err := e.evaluateRule(ctx, rule, vecs[i], ids)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		created = append(created, triggers...)
	}

	if err := e.watermark.Set(ctx, maxID); err != nil {
		return nil, fmt.Errorf("failed to advance watermark: %w", err)
	}
	metrics.AlertWatermark.Set(float64(maxID))
	res.Watermark = maxID
	res.Triggers = len(created)

	e.publish(ctx, created)
	return res, nil
}

// embedRules 并发计算启用规则的查询向量，任一失败则整批失败
func (e *Engine) embedRules(ctx context.Context, rules []*entity.AlertRule) ([][]float32, error) {
	vecs := make([][]float32, len(rules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ruleEmbedConcurrency)
	for i, rule := range rules {
		g.Go(func() error {
			vec, err := embedclient.Embed(gctx, e.embedder, rule.Query)
			if err != nil {
				return fmt.Errorf("rule %s: %w", rule.ID, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

// evaluateRule 在本批分段内检索规则向量，命中的写入触发记录
func (e *Engine) evaluateRule(ctx context.Context, rule *entity.AlertRule, vec []float32, segmentIDs []string) ([]*entity.AlertTrigger, error) {
	hits, err := e.index.Search(ctx, index.SearchQuery{
		Vector:      vec,
		SegmentIDs:  segmentIDs,
		Limit:       len(segmentIDs),
		MaxDistance: e.opts.MaxDistance,
	})
	if err != nil {
		return nil, err
	}

	var created []*entity.AlertTrigger
	for _, h := range hits {
		trigger := entity.NewAlertTrigger(e.newID(), rule, h.Record, h.Distance, e.now())
		err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			inserted, err := e.triggers.InsertIfAbsent(txCtx, trigger)
			if err != nil || !inserted {
				return err
			}
			if err := e.rules.IncrementTriggerCount(txCtx, rule.ID, 1); err != nil {
				return err
			}
			created = append(created, trigger)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record trigger: %w", err)
		}
	}
	return created, nil
}

func (e *Engine) publish(ctx context.Context, triggers []*entity.AlertTrigger) {
	for _, t := range triggers {
		metrics.AlertTriggersTotal.Inc()
		logger.Info(ctx, "alert triggered",
			"rule_id", t.RuleID,
			"segment_id", t.SegmentID,
			"distance", t.Distance,
		)
		if e.notifier == nil {
			continue
		}
		if err := e.notifier.NotifyAlertTriggered(ctx, t); err != nil {
			logger.Error(ctx, "failed to publish alert trigger", err, "trigger_id", t.ID)
		}
	}
}

// Run 按间隔评估，每次最多处理 MaxBatchesPerTick 批，直到 ctx 结束
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	logger.Info(ctx, "alert engine started", "interval", e.opts.Interval, "batch_size", e.opts.BatchSize)
	for {
		e.Tick(ctx)
		select {
		case <-ctx.Done():
			logger.Info(ctx, "alert engine stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick 连续评估直到追平、被跳过或达到单次上限
func (e *Engine) Tick(ctx context.Context) int {
	batches := 0
	for batches < e.opts.MaxBatchesPerTick {
		if ctx.Err() != nil {
			return batches
		}
		res, err := e.Evaluate(ctx)
		if err != nil {
			logger.Error(ctx, "alert evaluation failed", err)
			return batches
		}
		if res.Skipped || res.Records == 0 {
			return batches
		}
		batches++
		if res.Records < e.opts.BatchSize {
			return batches
		}
	}
	return batches
}
