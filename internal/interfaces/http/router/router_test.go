package router

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"video-sentinel/internal/application/alert"
	"video-sentinel/internal/application/capture"
	"video-sentinel/internal/application/index"
	"video-sentinel/internal/application/maintenance"
	"video-sentinel/internal/application/query"
	"video-sentinel/internal/config"
	"video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/internal/infrastructure/persistence/memory"
	"video-sentinel/internal/infrastructure/vlm"
	"video-sentinel/internal/interfaces/http/handler"
	"video-sentinel/pkg/utils"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) (*Router, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.JWT.Enabled = true
	cfg.Security.JWT.Secret = testSecret
	cfg.Security.JWT.Issuer = "video-sentinel"
	cfg.Capture.RecordingsDir = dir
	cfg.Capture.DefaultChunkMinutes = 1

	idx := index.New(memory.NewIndexRecordRepository(), memory.NewVectorRepository())
	segments := memory.NewSegmentRepository()
	triggers := memory.NewAlertTriggerRepository()
	recorder := capture.NewRecorder(capture.NewFrameSegmenter(nil, ".mp4"), capture.NewRepositorySink(segments, nil, nil), &cfg.Capture)

	handlers := &Handlers{
		Health:    handler.NewHealthHandler(nil, nil, nil),
		Recording: handler.NewRecordingHandler(recorder, maintenance.NewService(recorder, idx, segments, triggers, dir)),
		Search:    handler.NewSearchHandler(query.NewEngine(idx, embedding.NewHashingEmbedder(256), vlm.NewFake(), query.Options{Location: time.UTC})),
		Alert:     handler.NewAlertHandler(alert.NewRuleService(memory.NewAlertRuleRepository(), triggers, 0)),
		Segment:   handler.NewSegmentHandler(segments),
		Video:     handler.NewVideoHandler(dir),
	}
	return New(cfg, handlers, nil), dir
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewJWTManager(testSecret, "video-sentinel").GenerateToken("user-1", role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestRouterAuth(t *testing.T) {
	r, dir := newTestRouter(t)
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	operator := token(t, utils.RoleOperator)
	viewer := token(t, utils.RoleViewer)

	tests := []struct {
		name     string
		method   string
		path     string
		bearer   string
		body     string
		wantCode int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"api requires token", http.MethodGet, "/api/v1/recording/status", "", "", http.StatusUnauthorized},
		{"invalid token", http.MethodGet, "/api/v1/recording/status", "not-a-jwt", "", http.StatusUnauthorized},
		{"viewer can read", http.MethodGet, "/api/v1/recording/status", viewer, "", http.StatusOK},
		{"viewer cannot mutate", http.MethodPost, "/api/v1/alerts", viewer, `{"query":"person"}`, http.StatusForbidden},
		{"operator can mutate", http.MethodPost, "/api/v1/alerts", operator, `{"query":"person"}`, http.StatusCreated},
		{"operator stop when idle", http.MethodPost, "/api/v1/recording/stop", operator, "", http.StatusConflict},
		{"api ignores query token", http.MethodGet, "/api/v1/alerts?token=" + viewer, "", "", http.StatusUnauthorized},
		{"video requires token", http.MethodGet, "/videos/clip.mp4", "", "", http.StatusUnauthorized},
		{"video accepts query token", http.MethodGet, "/videos/clip.mp4?token=" + viewer, "", "", http.StatusOK},
		{"video accepts bearer", http.MethodGet, "/videos/clip.mp4", viewer, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()
			r.Engine().ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d, body = %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestRouterRequestID(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
