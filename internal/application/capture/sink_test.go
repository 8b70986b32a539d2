package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/infrastructure/persistence/memory"
)

// attempts 固定次数的重试，不等待
type attempts int

func (n attempts) Retry(ctx context.Context, _ string, op func(ctx context.Context) error) error {
	var err error
	for i := 0; i < int(n); i++ {
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}

func (n attempts) Budget() time.Duration { return time.Duration(n) * time.Second }

// flakyNotifier 前 failures 次通知失败
type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	calls    int
	ids      []string
}

func (n *flakyNotifier) NotifySegmentClosed(_ context.Context, seg *entity.Segment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.failures > 0 {
		n.failures--
		return errors.New("redis: connection refused")
	}
	n.ids = append(n.ids, seg.ID)
	return nil
}

// closeFailingRepo 拒绝保存 closed 状态
type closeFailingRepo struct {
	*memory.SegmentRepository
}

func (r closeFailingRepo) Update(ctx context.Context, seg *entity.Segment) error {
	if seg.State == entity.SegmentStateClosed {
		return errors.New("pq: connection reset by peer")
	}
	return r.SegmentRepository.Update(ctx, seg)
}

func openSegment(t *testing.T, sink *RepositorySink, id string, seq int64) *entity.Segment {
	t.Helper()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute)
	seg := entity.NewSegment(id, "cam-1", "rtsp://cam-1/live", "rec-1", seq, start, "/recordings/"+id+".mp4")
	if err := sink.SegmentOpened(context.Background(), seg); err != nil {
		t.Fatalf("SegmentOpened() error = %v", err)
	}
	if err := seg.Close(time.Minute); err != nil {
		t.Fatal(err)
	}
	return seg
}

func TestRepositorySinkRetriesNotify(t *testing.T) {
	repo := memory.NewSegmentRepository()
	notifier := &flakyNotifier{failures: 1}
	sink := NewRepositorySink(repo, notifier, attempts(3))

	seg := openSegment(t, sink, "seg-0", 0)
	if err := sink.SegmentClosed(context.Background(), seg); err != nil {
		t.Fatalf("SegmentClosed() error = %v", err)
	}

	if notifier.calls != 2 || len(notifier.ids) != 1 {
		t.Errorf("notify calls = %d, delivered = %v", notifier.calls, notifier.ids)
	}
	if sink.Pending() != 0 {
		t.Errorf("pending = %d, want 0", sink.Pending())
	}
	stored, _ := repo.GetByID(context.Background(), "seg-0")
	if stored.State != entity.SegmentStateClosed {
		t.Errorf("stored state = %s, want closed", stored.State)
	}
}

func TestRepositorySinkKeepsOrderAfterFailedHandoff(t *testing.T) {
	repo := memory.NewSegmentRepository()
	notifier := &flakyNotifier{failures: 2}
	sink := NewRepositorySink(repo, notifier, attempts(2))
	ctx := context.Background()

	first := openSegment(t, sink, "seg-0", 0)
	if err := sink.SegmentClosed(ctx, first); err == nil {
		t.Fatal("SegmentClosed() error = nil, want notify failure")
	}
	if sink.Pending() != 1 || len(notifier.ids) != 0 {
		t.Fatalf("pending = %d, delivered = %v", sink.Pending(), notifier.ids)
	}
	// 关闭状态已落库，摄取侧巡检可以补交
	if stored, _ := repo.GetByID(ctx, "seg-0"); stored.State != entity.SegmentStateClosed {
		t.Errorf("stored state = %s, want closed", stored.State)
	}

	second := openSegment(t, sink, "seg-1", 1)
	if err := sink.SegmentClosed(ctx, second); err != nil {
		t.Fatalf("SegmentClosed() error = %v", err)
	}
	if got := strings.Join(notifier.ids, ","); got != "seg-0,seg-1" {
		t.Errorf("delivery order = %s, want seg-0,seg-1", got)
	}
	if sink.Pending() != 0 {
		t.Errorf("pending = %d, want 0", sink.Pending())
	}
}

func TestRepositorySinkFailsSegmentWhenCloseCannotPersist(t *testing.T) {
	repo := closeFailingRepo{memory.NewSegmentRepository()}
	notifier := &flakyNotifier{}
	sink := NewRepositorySink(repo, notifier, attempts(3))

	seg := openSegment(t, sink, "seg-0", 0)
	if err := sink.SegmentClosed(context.Background(), seg); err == nil {
		t.Fatal("SegmentClosed() error = nil, want persist failure")
	}

	stored, _ := repo.GetByID(context.Background(), "seg-0")
	if stored.State != entity.SegmentStateFailed || !strings.Contains(stored.LastError, "connection reset") {
		t.Errorf("stored = %s %q, want failed", stored.State, stored.LastError)
	}
	if notifier.calls != 0 {
		t.Errorf("notify calls = %d, want 0", notifier.calls)
	}
}

func TestStopWaitCoversFinalize(t *testing.T) {
	cfg := &config.CaptureConfig{StopTimeout: 15 * time.Second, Faststart: true}
	ff := NewFFmpegSegmenter(cfg)
	sink := NewRepositorySink(memory.NewSegmentRepository(), nil, attempts(3))

	got := stopWait(ff, sink, cfg.StopTimeout)
	// ffmpeg 退出 + 两个分段的 remux 与 probe + 两个分段的落库与通知
	want := cfg.StopTimeout + 2*(remuxTimeout+probeTimeout) + 2*2*3*time.Second + stopMargin
	if got != want {
		t.Errorf("stopWait() = %v, want %v", got, want)
	}

	rec := NewRecorder(ff, sink, cfg)
	if rec.StopWait() != want {
		t.Errorf("StopWait() = %v, want %v", rec.StopWait(), want)
	}

	frames := NewFrameSegmenter(nil, ".h264")
	if got := stopWait(frames, NewRepositorySink(memory.NewSegmentRepository(), nil, nil), time.Second); got != time.Second+stopMargin {
		t.Errorf("stopWait() without budgets = %v", got)
	}
}
