package capture

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/entity"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/metrics"
)

// State 录制器状态
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateFailed    State = "failed"
)

var allStates = []State{StateIdle, StateRecording, StateStopping, StateFailed}

const (
	MinChunkMinutes = 1
	MaxChunkMinutes = 60
)

var errNoFrames = errors.New("no frames captured")

// StartInput 开始录制参数，ChunkMinutes 为 0 表示未指定，使用默认值
type StartInput struct {
	StreamURL    string
	ChunkMinutes int
}

// Status 录制器状态快照
type Status struct {
	State          State
	StreamURL      string
	StreamID       string
	RecordingID    string
	ChunkDuration  time.Duration
	StartedAt      time.Time
	CurrentSegment string
	SegmentsClosed int
	Error          string
	Warnings       []string
}

// Recording 是否仍在录制（含停止中）
func (s Status) Recording() bool {
	return s.State == StateRecording || s.State == StateStopping
}

// Recorder 单流录制器，持有唯一的采集句柄
// 同一时刻最多一个活动录制，至多一个 recording 状态的分段
type Recorder struct {
	segmenter    Segmenter
	sink         SegmentSink
	dir          string
	defaultChunk int
	label        string
	stopWait     time.Duration
	newID        func() string

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder 创建录制器
func NewRecorder(segmenter Segmenter, sink SegmentSink, cfg *config.CaptureConfig) *Recorder {
	chunk := cfg.DefaultChunkMinutes
	if chunk < MinChunkMinutes || chunk > MaxChunkMinutes {
		chunk = 1
	}
	r := &Recorder{
		segmenter:    segmenter,
		sink:         sink,
		dir:          cfg.RecordingsDir,
		defaultChunk: chunk,
		label:        cfg.StreamLabel,
		stopWait:     stopWait(segmenter, sink, cfg.StopTimeout),
		newID:        uuid.NewString,
		status:       Status{State: StateIdle},
	}
	setStateMetric(StateIdle)
	return r
}

// stopBudgeter 能给出停止后收尾最长耗时的组件
type stopBudgeter interface {
	StopBudget() time.Duration
}

const stopMargin = 5 * time.Second

// stopWait 等待切分器收尾与最后分段交接的上限
func stopWait(segmenter Segmenter, sink SegmentSink, stopTimeout time.Duration) time.Duration {
	wait := stopMargin
	if b, ok := segmenter.(stopBudgeter); ok {
		wait += b.StopBudget()
	} else {
		wait += max(stopTimeout, 0)
	}
	if b, ok := sink.(stopBudgeter); ok {
		wait += maxChunksOnStop * b.StopBudget()
	}
	return wait
}

// StopWait Stop 最长等待时间
func (r *Recorder) StopWait() time.Duration {
	return r.stopWait
}

// Start 开始录制；已在录制时不重复启动，返回当前状态和 false
func (r *Recorder) Start(ctx context.Context, in StartInput) (Status, bool, error) {
	chunk := in.ChunkMinutes
	if chunk == 0 {
		// 调用方已区分省略与显式 0
		chunk = r.defaultChunk
	}
	if chunk < MinChunkMinutes || chunk > MaxChunkMinutes {
		return r.Status(), false, apperrors.New(apperrors.CodeValidation, "chunk_duration_minutes must be between 1 and 60")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Recording() {
		logger.Info(ctx, "recording already in progress", "stream_url", r.status.StreamURL)
		return r.snapshotLocked(), false, nil
	}

	u, warnings, err := ValidateStreamURL(in.StreamURL)
	if err != nil {
		return r.snapshotLocked(), false, err
	}
	for _, w := range warnings {
		logger.Warn(ctx, "stream url warning", "stream_url", u.Redacted(), "warning", w)
	}

	streamID := StreamLabel(u, r.label)
	recordingID := r.newID()
	startedAt := time.Now()

	r.status = Status{
		State:         StateRecording,
		StreamURL:     in.StreamURL,
		StreamID:      streamID,
		RecordingID:   recordingID,
		ChunkDuration: time.Duration(chunk) * time.Minute,
		StartedAt:     startedAt,
		Warnings:      warnings,
	}
	setStateMetric(StateRecording)

	// 录制生命周期独立于请求
	base := logger.WithContext(context.Background(), logger.StreamIDKey, streamID)
	runCtx, cancel := context.WithCancel(base)
	r.cancel = cancel
	r.done = make(chan struct{})

	ev := &recordingEvents{
		r:         r,
		ctx:       base,
		streamID:  streamID,
		streamURL: in.StreamURL,
		recID:     recordingID,
		cursor:    startedAt,
	}
	opts := Options{
		StreamURL:     in.StreamURL,
		ChunkDuration: r.status.ChunkDuration,
		Dir:           filepath.Join(r.dir, streamID),
	}
	go r.run(runCtx, opts, ev, r.done)

	logger.Info(ctx, "recording started", "stream_id", streamID, "recording_id", recordingID, "chunk_minutes", chunk)
	return r.snapshotLocked(), true, nil
}

func (r *Recorder) run(ctx context.Context, opts Options, ev *recordingEvents, done chan struct{}) {
	defer close(done)

	err := r.segmenter.Run(ctx, opts, ev)

	r.mu.Lock()
	defer r.mu.Unlock()

	stopping := r.status.State == StateStopping
	r.cancel = nil

	switch {
	case err != nil && !stopping:
		r.status.State = StateFailed
		r.status.Error = err.Error()
		logger.Error(ev.ctx, "recording failed, restart required", err, "segments_closed", r.status.SegmentsClosed)
	case err != nil:
		r.status.State = StateIdle
		logger.Warn(ev.ctx, "segmenter returned error while stopping", "error", err)
	default:
		r.status.State = StateIdle
		logger.Info(ev.ctx, "recording finished", "segments_closed", r.status.SegmentsClosed)
	}
	r.status.CurrentSegment = ""
	setStateMetric(r.status.State)
}

// Stop 停止录制并等待当前分段完成；未在录制时返回 StateConflict
func (r *Recorder) Stop(ctx context.Context) (Status, error) {
	r.mu.Lock()
	if r.status.State != StateRecording {
		st := r.snapshotLocked()
		r.mu.Unlock()
		return st, apperrors.ErrNotRecording
	}
	r.status.State = StateStopping
	setStateMetric(StateStopping)
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	logger.Info(ctx, "stopping recording", "stream_url", r.Status().StreamURL)
	cancel()

	wctx, stop := context.WithTimeout(ctx, r.stopWait)
	defer stop()
	select {
	case <-done:
	case <-wctx.Done():
		return r.Status(), apperrors.Transient(wctx.Err(), "timed out waiting for recorder to stop")
	}
	return r.Status(), nil
}

// Wait 阻塞到当前录制结束
func (r *Recorder) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status 当前状态
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// IsRecording 是否有活动录制
func (r *Recorder) IsRecording() bool {
	return r.Status().Recording()
}

func (r *Recorder) snapshotLocked() Status {
	st := r.status
	st.Warnings = append([]string(nil), r.status.Warnings...)
	return st
}

func setStateMetric(state State) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		metrics.RecorderState.WithLabelValues(string(s)).Set(v)
	}
}

// recordingEvents 绑定一次录制，只在切分器 goroutine 中调用
type recordingEvents struct {
	r         *Recorder
	ctx       context.Context
	streamID  string
	streamURL string
	recID     string

	cursor   time.Time
	seq      int64
	seg      *entity.Segment
	openedAt time.Time
}

func (e *recordingEvents) ChunkOpened(path string) {
	seg := entity.NewSegment(e.r.newID(), e.streamID, e.streamURL, e.recID, e.seq, e.cursor, path)
	e.seg = seg
	e.openedAt = time.Now()

	e.r.mu.Lock()
	e.r.status.CurrentSegment = seg.ID
	e.r.mu.Unlock()

	ctx := logger.WithContext(e.ctx, logger.SegmentIDKey, seg.ID)
	if err := e.r.sink.SegmentOpened(ctx, seg); err != nil {
		logger.Error(ctx, "failed to persist recording segment", err, "path", path)
	}
}

func (e *recordingEvents) ChunkClosed(c Chunk) {
	if e.seg == nil {
		e.ChunkOpened(c.Path)
	}
	seg := e.seg
	e.seg = nil
	ctx := logger.WithContext(e.ctx, logger.SegmentIDKey, seg.ID)

	e.r.mu.Lock()
	e.r.status.CurrentSegment = ""
	e.r.mu.Unlock()

	if c.Empty {
		if err := e.r.sink.SegmentDiscarded(ctx, seg, errNoFrames); err != nil {
			logger.Error(ctx, "failed to discard empty segment", err)
		}
		return
	}

	d := c.Duration
	if d <= 0 {
		d = time.Since(e.openedAt)
	}
	if err := seg.Close(d); err != nil {
		logger.Error(ctx, "failed to close segment", err)
		return
	}
	// 下一段从本段结束处开始，保证连续不重叠
	e.cursor = seg.EndedAt()
	e.seq++

	e.r.mu.Lock()
	e.r.status.SegmentsClosed++
	e.r.mu.Unlock()
	metrics.SegmentsRecordedTotal.WithLabelValues(e.streamID).Inc()

	logger.Info(ctx, "segment closed", "sequence", seg.Sequence, "duration_ms", seg.DurationMs, "path", seg.LocalPath)
	// 失败的交接留在 sink 中，下一个分段关闭时按顺序重试
	if err := e.r.sink.SegmentClosed(ctx, seg); err != nil {
		logger.Error(ctx, "failed to hand off closed segment", err)
	}
}
