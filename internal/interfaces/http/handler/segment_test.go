package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"video-sentinel/internal/domain/entity"
	apperrors "video-sentinel/pkg/errors"
)

func TestListSegments(t *testing.T) {
	s := newTestServer(t)
	s.addRecord(t, "seg-1", "gate opens", time.Now().Add(-2*time.Hour))
	s.addRecord(t, "seg-2", "gate closes", time.Now().Add(-time.Hour))
	pending := entity.NewSegment("seg-3", "cam-2", "rtsp://cam-2/live", "rec-2", 1, time.Now(), "/data/cam-2/seg-3.mp4")
	_ = pending.Close(30 * time.Second)
	if err := s.segments.Create(context.Background(), pending); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int64
		wantFirst string
	}{
		{"all newest first", "", http.StatusOK, 3, "seg-3"},
		{"by state", "?state=indexed", http.StatusOK, 2, "seg-2"},
		{"by stream", "?stream_id=cam-2", http.StatusOK, 1, "seg-3"},
		{"second page", "?page=2&page_size=2", http.StatusOK, 3, "seg-1"},
		{"invalid state", "?state=bogus", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, s.engine, http.MethodGet, "/api/v1/segments"+tt.query, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			got := decode[struct {
				Items []map[string]any `json:"items"`
				Total int64            `json:"total"`
			}](t, env)
			if got.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", got.Total, tt.wantTotal)
			}
			if len(got.Items) == 0 || got.Items[0]["id"] != tt.wantFirst {
				t.Errorf("items = %v", got.Items)
			}
		})
	}
}

func TestGetSegment(t *testing.T) {
	s := newTestServer(t)
	s.addRecord(t, "seg-1", "gate opens", time.Now().Add(-time.Hour))

	w, env := do(t, s.engine, http.MethodGet, "/api/v1/segments/seg-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	got := decode[map[string]any](t, env)
	if got["state"] != "indexed" || got["description"] != "gate opens" || got["finished_at"] == nil {
		t.Errorf("segment = %v", got)
	}

	w, env = do(t, s.engine, http.MethodGet, "/api/v1/segments/missing", nil)
	if w.Code != http.StatusNotFound || env.Error == nil || env.Error.ErrorCode != string(apperrors.CodeSegmentNotFound) {
		t.Errorf("missing segment = %d %s", w.Code, w.Body.String())
	}
}
