package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
	"video-sentinel/internal/infrastructure/persistence/memory"
	apperrors "video-sentinel/pkg/errors"
)

const syntheticURL = "file:///srv/streams/synthetic.mp4"

// syntheticReader 按固定间隔产出帧，帧用尽后 EOF、失败或阻塞到 ctx 取消
type syntheticReader struct {
	step   time.Duration
	frames int
	fail   error
	block  bool

	n       int
	drained chan struct{}
	once    sync.Once
}

func newSyntheticReader(step time.Duration, frames int) *syntheticReader {
	return &syntheticReader{step: step, frames: frames, drained: make(chan struct{})}
}

func (r *syntheticReader) ReadFrame(ctx context.Context) (Frame, error) {
	if r.n >= r.frames {
		r.once.Do(func() { close(r.drained) })
		switch {
		case r.block:
			<-ctx.Done()
			return Frame{}, ctx.Err()
		case r.fail != nil:
			return Frame{}, r.fail
		default:
			return Frame{}, io.EOF
		}
	}
	f := Frame{PTS: time.Duration(r.n) * r.step, Duration: r.step, Data: []byte{byte(r.n)}}
	r.n++
	return f, nil
}

func (r *syntheticReader) Close() error { return nil }

type collectingNotifier struct {
	mu   sync.Mutex
	segs []entity.Segment
}

func (n *collectingNotifier) NotifySegmentClosed(_ context.Context, seg *entity.Segment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.segs = append(n.segs, *seg)
	return nil
}

func (n *collectingNotifier) closed() []entity.Segment {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entity.Segment(nil), n.segs...)
}

func newTestRecorder(t *testing.T, reader FrameReader) (*Recorder, *collectingNotifier, *memory.SegmentRepository) {
	t.Helper()
	repo := memory.NewSegmentRepository()
	notifier := &collectingNotifier{}
	seg := NewFrameSegmenter(func(context.Context, string) (FrameReader, error) { return reader, nil }, ".h264")
	cfg := &config.CaptureConfig{
		RecordingsDir:       t.TempDir(),
		DefaultChunkMinutes: 1,
		StopTimeout:         time.Second,
	}
	return NewRecorder(seg, NewRepositorySink(repo, notifier, nil), cfg), notifier, repo
}

func waitRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("recorder did not finish: %v", err)
	}
}

func assertContiguous(t *testing.T, segs []entity.Segment) {
	t.Helper()
	for i := 1; i < len(segs); i++ {
		prev, cur := segs[i-1], segs[i]
		if !cur.StartedAt.Equal(prev.EndedAt()) {
			t.Errorf("segment %d starts at %v, previous ends at %v", i, cur.StartedAt, prev.EndedAt())
		}
		if cur.Sequence != prev.Sequence+1 {
			t.Errorf("segment %d sequence = %d, want %d", i, cur.Sequence, prev.Sequence+1)
		}
	}
}

func TestRecorderSyntheticThreeAndAHalfMinutes(t *testing.T) {
	reader := newSyntheticReader(time.Second, 210)
	rec, notifier, repo := newTestRecorder(t, reader)

	st, started, err := rec.Start(context.Background(), StartInput{StreamURL: syntheticURL, ChunkMinutes: 1})
	if err != nil || !started {
		t.Fatalf("Start() = %v, %v", started, err)
	}
	if !st.Recording() {
		t.Errorf("state = %s, want recording", st.State)
	}
	waitRecorder(t, rec)

	segs := notifier.closed()
	want := []time.Duration{time.Minute, time.Minute, time.Minute, 30 * time.Second}
	if len(segs) != len(want) {
		t.Fatalf("closed segments = %d, want %d", len(segs), len(want))
	}
	for i, d := range want {
		if segs[i].Duration() != d {
			t.Errorf("segment %d duration = %v, want %v", i, segs[i].Duration(), d)
		}
		if segs[i].State != entity.SegmentStateClosed {
			t.Errorf("segment %d state = %s", i, segs[i].State)
		}
	}
	assertContiguous(t, segs)

	stored, _ := repo.GetByID(context.Background(), segs[3].ID)
	if stored == nil || stored.State != entity.SegmentStateClosed {
		t.Errorf("stored last segment = %+v", stored)
	}
	// 流自行结束需要人工重启
	if got := rec.Status(); got.State != StateFailed || got.Error != ErrStreamEnded.Error() || got.SegmentsClosed != 4 {
		t.Errorf("status = %+v", got)
	}
}

func TestFrameSegmenterStreamEnd(t *testing.T) {
	seg := NewFrameSegmenter(func(context.Context, string) (FrameReader, error) {
		return newSyntheticReader(time.Second, 30), nil
	}, ".h264")
	var closed []Chunk
	ev := eventFunc(func(c Chunk) { closed = append(closed, c) })

	err := seg.Run(context.Background(), Options{StreamURL: syntheticURL, ChunkDuration: time.Minute, Dir: t.TempDir()}, ev)
	if !errors.Is(err, ErrStreamEnded) {
		t.Fatalf("Run() error = %v, want ErrStreamEnded", err)
	}
	if len(closed) != 1 || closed[0].Duration != 30*time.Second {
		t.Errorf("closed chunks = %+v", closed)
	}
}

// eventFunc 只关心关闭事件
type eventFunc func(Chunk)

func (f eventFunc) ChunkOpened(string) {}
func (f eventFunc) ChunkClosed(c Chunk) { f(c) }

func TestRecorderContiguousForAllChunkDurations(t *testing.T) {
	for _, minutes := range []int{1, 2, 5, 17, 60} {
		t.Run(fmt.Sprintf("%dm", minutes), func(t *testing.T) {
			step := 5 * time.Second
			// 3.5 个分段长度
			frames := int(time.Duration(minutes) * time.Minute * 7 / 2 / step)
			rec, notifier, _ := newTestRecorder(t, newSyntheticReader(step, frames))

			if _, _, err := rec.Start(context.Background(), StartInput{StreamURL: syntheticURL, ChunkMinutes: minutes}); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			waitRecorder(t, rec)

			segs := notifier.closed()
			if len(segs) != 4 {
				t.Fatalf("closed segments = %d, want 4", len(segs))
			}
			d := time.Duration(minutes) * time.Minute
			for i := 0; i < 3; i++ {
				if segs[i].Duration() != d {
					t.Errorf("segment %d duration = %v, want %v", i, segs[i].Duration(), d)
				}
			}
			if segs[3].Duration() != d/2 {
				t.Errorf("last segment duration = %v, want %v", segs[3].Duration(), d/2)
			}
			assertContiguous(t, segs)
		})
	}
}

func TestRecorderStopFinalizesPartialChunk(t *testing.T) {
	reader := newSyntheticReader(time.Second, 90)
	reader.block = true
	rec, notifier, _ := newTestRecorder(t, reader)

	if _, _, err := rec.Start(context.Background(), StartInput{StreamURL: syntheticURL}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-reader.drained

	st, err := rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if st.State != StateIdle || st.StreamURL != syntheticURL {
		t.Errorf("status after stop = %+v", st)
	}

	segs := notifier.closed()
	if len(segs) != 2 {
		t.Fatalf("closed segments = %d, want 2", len(segs))
	}
	if segs[1].Duration() != 30*time.Second {
		t.Errorf("partial segment duration = %v, want 30s", segs[1].Duration())
	}
	assertContiguous(t, segs)
}

func TestRecorderStopWithoutFramesProducesNoSegment(t *testing.T) {
	reader := newSyntheticReader(time.Second, 0)
	reader.block = true
	rec, notifier, repo := newTestRecorder(t, reader)

	if _, _, err := rec.Start(context.Background(), StartInput{StreamURL: syntheticURL}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-reader.drained
	if _, err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := len(notifier.closed()); got != 0 {
		t.Errorf("closed segments = %d, want 0", got)
	}
	page, _ := repo.List(context.Background(), nil, repository.NewPagination(1, 20))
	if page.Total != 0 {
		t.Errorf("stored segments = %d, want 0", page.Total)
	}
}

func TestRecorderReadFailureIsFatal(t *testing.T) {
	reader := newSyntheticReader(time.Second, 70)
	reader.fail = errors.New("connection refused")
	rec, notifier, _ := newTestRecorder(t, reader)

	if _, _, err := rec.Start(context.Background(), StartInput{StreamURL: syntheticURL}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitRecorder(t, rec)

	st := rec.Status()
	if st.State != StateFailed || st.Error == "" {
		t.Errorf("status = %+v, want failed with error", st)
	}
	// 已采集的部分分段仍然交付
	segs := notifier.closed()
	if len(segs) != 2 || segs[1].Duration() != 10*time.Second {
		t.Fatalf("closed segments = %+v", segs)
	}

	if _, err := rec.Stop(context.Background()); apperrors.CodeOf(err) != apperrors.CodeStateConflict {
		t.Errorf("Stop() after failure error = %v, want state conflict", err)
	}
}

func TestRecorderStartIsIdempotent(t *testing.T) {
	reader := newSyntheticReader(time.Second, 5)
	reader.block = true
	rec, _, _ := newTestRecorder(t, reader)
	ctx := context.Background()

	first, started, err := rec.Start(ctx, StartInput{StreamURL: syntheticURL})
	if err != nil || !started {
		t.Fatalf("first Start() = %v, %v", started, err)
	}
	second, started, err := rec.Start(ctx, StartInput{StreamURL: "rtsp://other-camera/live"})
	if err != nil || started {
		t.Fatalf("second Start() = %v, %v", started, err)
	}
	if second.RecordingID != first.RecordingID || second.StreamURL != syntheticURL {
		t.Errorf("second Start() status = %+v", second)
	}

	if _, err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := rec.Stop(ctx); !errors.Is(err, apperrors.ErrNotRecording) {
		t.Errorf("second Stop() error = %v, want ErrNotRecording", err)
	}
}

func TestRecorderRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   StartInput
		code apperrors.ErrorCode
	}{
		{"chunk too long", StartInput{StreamURL: syntheticURL, ChunkMinutes: 61}, apperrors.CodeValidation},
		{"negative chunk", StartInput{StreamURL: syntheticURL, ChunkMinutes: -1}, apperrors.CodeValidation},
		{"bad scheme", StartInput{StreamURL: "ftp://cam/live"}, apperrors.CodePermanentInput},
		{"empty url", StartInput{}, apperrors.CodePermanentInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, _ := newTestRecorder(t, newSyntheticReader(time.Second, 0))
			st, started, err := rec.Start(context.Background(), tt.in)
			if started || apperrors.CodeOf(err) != tt.code {
				t.Fatalf("Start() = %v, %v; want code %s", started, err, tt.code)
			}
			if st.State != StateIdle {
				t.Errorf("state = %s, want idle", st.State)
			}
		})
	}
}
