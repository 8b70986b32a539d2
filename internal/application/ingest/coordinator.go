package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"video-sentinel/internal/application/index"
	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
	embedclient "video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/internal/infrastructure/storage"
	"video-sentinel/internal/infrastructure/vlm"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/metrics"
)

var tracer = otel.Tracer("ingest")

// 阶段名，用于指标与日志
const (
	StageUpload   = "upload"
	StageDescribe = "describe"
	StageEmbed    = "embed"
	StageIndex    = "index"
)

// ErrCoordinatorClosed 已停止接收新分段
var ErrCoordinatorClosed = errors.New("ingest coordinator is closed")

// Options 协调器参数
type Options struct {
	Workers           int
	QueueSize         int
	Prompt            string
	Provider          string
	KeyPrefix         string
	DeleteAfterUpload bool
	Location          *time.Location
	Policy            Policy
	SweepInterval     time.Duration
	SweepGrace        time.Duration
}

// OptionsFromConfig 从全局配置构建协调器参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:           cfg.Ingest.Workers,
		QueueSize:         cfg.Ingest.QueueSize,
		Prompt:            cfg.Ingest.Prompt,
		Provider:          cfg.Ingest.Provider,
		KeyPrefix:         cfg.Storage.R2.KeyPrefix,
		DeleteAfterUpload: cfg.Capture.DeleteAfterUpload,
		Location:          cfg.App.Location(),
		Policy:            PolicyFromConfig(&cfg.Ingest),
		SweepInterval:     cfg.Ingest.SweepInterval,
		SweepGrace:        cfg.Ingest.SweepGrace,
	}
}

type job struct {
	seg    *entity.Segment
	ticket *Ticket
}

// Coordinator 摄取协调器
// 同一流按提交顺序提交索引；不同分段的上传与描述可以并行
type Coordinator struct {
	segments  repository.SegmentRepository
	store     storage.Store
	describer vlm.Describer
	embedder  embedding.Embedder
	index     *index.Index
	seq       *Sequencer
	opts      Options

	submitMu sync.Mutex
	queue    chan job
	pending  sync.WaitGroup
	inFlight map[string]bool
	flightMu sync.Mutex
	closed   bool

	startOnce sync.Once
	group     *errgroup.Group
}

// NewCoordinator 创建协调器
func NewCoordinator(
	segments repository.SegmentRepository,
	store storage.Store,
	describer vlm.Describer,
	emb embedding.Embedder,
	idx *index.Index,
	opts Options,
) *Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy.MaxAttempts = 1
	}
	if opts.Policy.StepTimeout <= 0 {
		opts.Policy.StepTimeout = 2 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.SweepGrace <= 0 {
		opts.SweepGrace = 5 * time.Minute
	}
	return &Coordinator{
		segments:  segments,
		store:     store,
		describer: describer,
		embedder:  emb,
		index:     idx,
		seq:       NewSequencer(),
		opts:      opts,
		queue:     make(chan job, opts.QueueSize),
		inFlight:  make(map[string]bool),
	}
}

// Start 启动 worker；worker 在 Close 后排空队列再退出
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		g := &errgroup.Group{}
		for i := 0; i < c.opts.Workers; i++ {
			g.Go(func() error {
				for j := range c.queue {
					c.process(ctx, j)
				}
				return nil
			})
		}
		c.group = g
		logger.Info(ctx, "ingest coordinator started", "workers", c.opts.Workers)
	})
}

// Submit 按发出顺序提交已关闭的分段；同一分段在处理中时忽略重复提交
func (c *Coordinator) Submit(ctx context.Context, seg *entity.Segment) error {
	if seg == nil {
		return apperrors.New(apperrors.CodeValidation, "segment is required")
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if c.closed {
		return ErrCoordinatorClosed
	}

	c.flightMu.Lock()
	if c.inFlight[seg.ID] {
		c.flightMu.Unlock()
		logger.Debug(ctx, "segment already in flight, skipping", "segment_id", seg.ID)
		return nil
	}
	c.inFlight[seg.ID] = true
	c.flightMu.Unlock()

	ticket := c.seq.Reserve(seg.StreamID)
	c.pending.Add(1)

	cp := *seg
	select {
	case c.queue <- job{seg: &cp, ticket: ticket}:
		return nil
	case <-ctx.Done():
		ticket.Release()
		c.forget(seg.ID)
		c.pending.Done()
		return ctx.Err()
	}
}

// NotifySegmentClosed 进程内直接把录制器的分段交给协调器
func (c *Coordinator) NotifySegmentClosed(ctx context.Context, seg *entity.Segment) error {
	return c.Submit(ctx, seg)
}

// Resume 重新提交未到终态的分段，按开始时间顺序
func (c *Coordinator) Resume(ctx context.Context) (int, error) {
	unfinished, err := c.segments.ListUnfinished(ctx, 10000)
	if err != nil {
		return 0, fmt.Errorf("failed to list unfinished segments: %w", err)
	}
	for _, seg := range unfinished {
		if err := c.Submit(ctx, seg); err != nil {
			return 0, err
		}
	}
	if len(unfinished) > 0 {
		logger.Info(ctx, "resumed unfinished segments", "count", len(unfinished))
	}
	return len(unfinished), nil
}

// 分段最长 60 分钟，超过该时长加宽限仍在 recording 的分段已被录制侧遗弃
const maxSegmentSpan = time.Hour

const sweepBatch = 1000

var errAbandoned = errors.New("segment abandoned while recording")

// Sweep 补交交接失败的分段：宽限期内无进展的未完成分段重新提交，
// 长时间停留在 recording 的分段标记失败
func (c *Coordinator) Sweep(ctx context.Context) (resubmitted, abandoned int, err error) {
	now := time.Now()

	stale, err := c.segments.ListStale(ctx, []entity.SegmentState{
		entity.SegmentStateClosed,
		entity.SegmentStateUploaded,
		entity.SegmentStateDescribed,
	}, now.Add(-c.opts.SweepGrace), sweepBatch)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list stale segments: %w", err)
	}
	for _, seg := range stale {
		if err := c.Submit(ctx, seg); err != nil {
			return resubmitted, 0, err
		}
		resubmitted++
	}

	orphans, err := c.segments.ListStale(ctx, []entity.SegmentState{entity.SegmentStateRecording},
		now.Add(-(maxSegmentSpan + c.opts.SweepGrace)), sweepBatch)
	if err != nil {
		return resubmitted, 0, fmt.Errorf("failed to list abandoned segments: %w", err)
	}
	for _, seg := range orphans {
		sctx := logger.WithSegment(ctx, seg.StreamID, seg.ID)
		if err := seg.Fail(errAbandoned); err != nil {
			logger.Warn(sctx, "cannot mark segment failed", "error", err.Error())
			continue
		}
		if err := c.save(sctx, seg); err != nil {
			return resubmitted, abandoned, err
		}
		logger.Warn(sctx, "marked abandoned recording segment failed", "started_at", seg.StartedAt)
		abandoned++
	}

	if resubmitted > 0 || abandoned > 0 {
		logger.Info(ctx, "ingest sweep finished", "resubmitted", resubmitted, "abandoned", abandoned)
	}
	return resubmitted, abandoned, nil
}

// RunSweeper 按 SweepInterval 周期巡检，直到 ctx 取消
func (c *Coordinator) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, _, err := c.Sweep(ctx); err != nil {
			if errors.Is(err, ErrCoordinatorClosed) || ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "ingest sweep failed", err)
		}
	}
}

// Drain 等待所有已提交分段到达终态
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止接收新分段，等待已提交的分段处理完毕
func (c *Coordinator) Close(ctx context.Context) error {
	c.submitMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.submitMu.Unlock()

	if err := c.Drain(ctx); err != nil {
		return err
	}
	if c.group != nil {
		return c.group.Wait()
	}
	return nil
}

func (c *Coordinator) forget(id string) {
	c.flightMu.Lock()
	delete(c.inFlight, id)
	c.flightMu.Unlock()
}

// process 单个分段串行经过各阶段；已提交的分段不可取消
func (c *Coordinator) process(parent context.Context, j job) {
	ctx := logger.WithSegment(context.WithoutCancel(parent), j.seg.StreamID, j.seg.ID)
	ctx, span := tracer.Start(ctx, "ingest.Process")
	span.SetAttributes(
		attribute.String("segment.id", j.seg.ID),
		attribute.String("stream.id", j.seg.StreamID),
	)

	metrics.IngestInFlight.Inc()
	defer func() {
		metrics.IngestInFlight.Dec()
		j.ticket.Release()
		c.forget(j.seg.ID)
		c.pending.Done()
		span.End()
	}()

	seg, err := c.load(ctx, j.seg)
	if err != nil {
		span.RecordError(err)
		logger.Error(ctx, "failed to load segment", err)
		return
	}
	if seg.State.IsTerminal() {
		logger.Debug(ctx, "segment already terminal, skipping", "state", seg.State)
		return
	}

	if err := c.run(ctx, seg, j.ticket); err != nil {
		span.RecordError(err)
		c.fail(ctx, seg, err)
		return
	}
	logger.Info(ctx, "segment indexed", "attempts", seg.Attempts)
}

// load 以仓储中的状态为准，消息先于行到达时补建
func (c *Coordinator) load(ctx context.Context, submitted *entity.Segment) (*entity.Segment, error) {
	stored, err := c.segments.GetByID(ctx, submitted.ID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		// 录制侧的关闭更新可能晚于事件
		if stored.State == entity.SegmentStateRecording && submitted.State == entity.SegmentStateClosed {
			if err := c.segments.Update(ctx, submitted); err != nil {
				return nil, err
			}
			return submitted, nil
		}
		return stored, nil
	}
	if submitted.State == entity.SegmentStateRecording {
		return nil, apperrors.StateConflict("segment is still recording")
	}
	if err := c.segments.Create(ctx, submitted); err != nil {
		return nil, err
	}
	return submitted, nil
}

func (c *Coordinator) run(ctx context.Context, seg *entity.Segment, ticket *Ticket) error {
	if seg.State == entity.SegmentStateRecording {
		return apperrors.StateConflict("segment is still recording")
	}

	if seg.State == entity.SegmentStateClosed {
		loc, err := stage(ctx, c, seg, StageUpload, func(ctx context.Context) (storage.Location, error) {
			key := storage.ObjectKey(path.Join(c.opts.KeyPrefix, seg.StreamID), seg.LocalPath)
			return c.store.Put(ctx, key, seg.LocalPath)
		})
		if err != nil {
			return err
		}
		if err := seg.MarkUploaded(loc.Key, loc.URL); err != nil {
			return err
		}
		if err := c.save(ctx, seg); err != nil {
			return err
		}
		if c.opts.DeleteAfterUpload {
			if err := os.Remove(seg.LocalPath); err != nil && !os.IsNotExist(err) {
				logger.Warn(ctx, "failed to delete local segment after upload", "path", seg.LocalPath, "error", err)
			}
		}
	}

	if seg.State == entity.SegmentStateUploaded {
		text, err := stage(ctx, c, seg, StageDescribe, func(ctx context.Context) (string, error) {
			return c.describer.Describe(ctx, vlm.Request{
				Provider: c.opts.Provider,
				VideoURL: seg.Location,
				Prompt:   c.opts.Prompt,
			})
		})
		if err != nil {
			return err
		}
		if err := seg.MarkDescribed(text); err != nil {
			return err
		}
		if err := c.save(ctx, seg); err != nil {
			return err
		}
	}

	vec, err := stage(ctx, c, seg, StageEmbed, func(ctx context.Context) ([]float32, error) {
		return embedclient.Embed(ctx, c.embedder, seg.Description)
	})
	if err != nil {
		return err
	}

	// 同一流中更早的分段结束前不提交
	if err := ticket.Wait(ctx); err != nil {
		return apperrors.Transient(err, "interrupted waiting for earlier segments")
	}

	rec := entity.NewIndexRecord(seg, vec, c.opts.Location)
	inserted, err := stage(ctx, c, seg, StageIndex, func(ctx context.Context) (bool, error) {
		return c.index.Put(ctx, rec)
	})
	if err != nil {
		return err
	}
	if !inserted {
		logger.Debug(ctx, "index record already exists", "segment_id", seg.ID)
	}
	if err := seg.MarkIndexed(); err != nil {
		return err
	}
	return c.save(ctx, seg)
}

// stage 带重试、超时与指标地执行一个阶段
func stage[T any](ctx context.Context, c *Coordinator, seg *entity.Segment, name string, op func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, attempts, err := Do(ctx, c.opts.Policy, name, op)
	seg.Attempts += attempts
	metrics.IngestStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IngestStageTotal.WithLabelValues(name, "failed").Inc()
		return v, fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
	}
	metrics.IngestStageTotal.WithLabelValues(name, "success").Inc()
	return v, nil
}

func (c *Coordinator) save(ctx context.Context, seg *entity.Segment) error {
	_, _, err := Do(ctx, c.opts.Policy, "persist", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.segments.Update(ctx, seg)
	})
	if err != nil {
		return fmt.Errorf("failed to persist segment state: %w", err)
	}
	return nil
}

// fail 标记失败；失败只影响本分段
func (c *Coordinator) fail(ctx context.Context, seg *entity.Segment, cause error) {
	logger.Error(ctx, "segment ingestion failed", cause, "state", seg.State, "kind", apperrors.Kind(cause))
	if err := seg.Fail(cause); err != nil {
		logger.Warn(ctx, "cannot mark segment failed", "error", err.Error())
		return
	}
	if err := c.save(ctx, seg); err != nil {
		logger.Error(ctx, "failed to persist failed segment", err)
	}
}
