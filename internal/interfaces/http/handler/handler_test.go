package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"video-sentinel/internal/application/alert"
	"video-sentinel/internal/application/capture"
	"video-sentinel/internal/application/index"
	"video-sentinel/internal/application/maintenance"
	"video-sentinel/internal/application/query"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/internal/infrastructure/persistence/memory"
	"video-sentinel/internal/infrastructure/vlm"
	apperrors "video-sentinel/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope 通用响应结构
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		ErrorCode string `json:"error_code"`
	} `json:"error"`
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

// fakeRecorder 可控的录制器
type fakeRecorder struct {
	mu       sync.Mutex
	status   capture.Status
	startErr error
}

func (f *fakeRecorder) Start(_ context.Context, in capture.StartInput) (capture.Status, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.status, false, f.startErr
	}
	if f.status.Recording() {
		return f.status, false, nil
	}
	chunk := in.ChunkMinutes
	if chunk == 0 {
		chunk = 1
	}
	f.status = capture.Status{
		State:         capture.StateRecording,
		StreamURL:     in.StreamURL,
		StreamID:      "cam-1",
		ChunkDuration: time.Duration(chunk) * time.Minute,
		StartedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	return f.status, true, nil
}

func (f *fakeRecorder) Stop(_ context.Context) (capture.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.status.Recording() {
		return f.status, apperrors.ErrNotRecording
	}
	f.status.State = capture.StateIdle
	return f.status, nil
}

func (f *fakeRecorder) Status() capture.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeRecorder) IsRecording() bool {
	return f.Status().Recording()
}

type testServer struct {
	engine    *gin.Engine
	recorder  *fakeRecorder
	idx       *index.Index
	emb       *embedding.HashingEmbedder
	describer *vlm.Fake
	segments  *memory.SegmentRepository
	triggers  *memory.AlertTriggerRepository
	dir       string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		recorder:  &fakeRecorder{status: capture.Status{State: capture.StateIdle}},
		idx:       index.New(memory.NewIndexRecordRepository(), memory.NewVectorRepository()),
		emb:       embedding.NewHashingEmbedder(1024),
		describer: vlm.NewFake(),
		segments:  memory.NewSegmentRepository(),
		triggers:  memory.NewAlertTriggerRepository(),
		dir:       t.TempDir(),
	}

	maint := maintenance.NewService(s.recorder, s.idx, s.segments, s.triggers, s.dir)
	recording := NewRecordingHandler(s.recorder, maint)
	search := NewSearchHandler(query.NewEngine(s.idx, s.emb, s.describer, query.Options{Location: time.UTC}))
	alerts := NewAlertHandler(alert.NewRuleService(memory.NewAlertRuleRepository(), s.triggers, 0))
	segs := NewSegmentHandler(s.segments)
	videos := NewVideoHandler(s.dir)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/recording/start", recording.Start)
	v1.POST("/recording/stop", recording.Stop)
	v1.GET("/recording/status", recording.Status)
	v1.POST("/recording/clear-database", recording.ClearDatabase)
	v1.POST("/search", search.Search)
	v1.POST("/analysis", search.Analysis)
	v1.GET("/search/available-dates", search.AvailableDates)
	v1.GET("/search/stats", search.Stats)
	v1.GET("/alerts", alerts.ListRules)
	v1.POST("/alerts", alerts.CreateRule)
	v1.GET("/alerts/history", alerts.History)
	v1.GET("/alerts/:id", alerts.GetRule)
	v1.PUT("/alerts/:id", alerts.UpdateRule)
	v1.DELETE("/alerts/:id", alerts.DeleteRule)
	v1.GET("/segments", segs.ListSegments)
	v1.GET("/segments/:id", segs.GetSegment)
	r.GET("/videos/*path", videos.Serve)
	s.engine = r
	return s
}

// addRecord 写入一条已描述的分段及其索引记录
func (s *testServer) addRecord(t *testing.T, id, text string, at time.Time) *entity.Segment {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(s.dir, "cam-1", id+".mp4")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("0123456789abcdefghij"), 0o644); err != nil {
		t.Fatal(err)
	}
	seg := entity.NewSegment(id, "cam-1", "rtsp://cam-1/live", "rec-1", 1, at, path)
	if err := s.segments.Create(ctx, seg); err != nil {
		t.Fatal(err)
	}
	_ = seg.Close(time.Minute)
	_ = seg.MarkUploaded("cam-1/"+id+".mp4", "memory://cam-1/"+id+".mp4")
	_ = seg.MarkDescribed(text)
	vec, err := embedding.Embed(ctx, s.emb, text)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.idx.Put(ctx, entity.NewIndexRecord(seg, vec, time.UTC)); err != nil {
		t.Fatal(err)
	}
	_ = seg.MarkIndexed()
	if err := s.segments.Update(ctx, seg); err != nil {
		t.Fatal(err)
	}
	return seg
}
