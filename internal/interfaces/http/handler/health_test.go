package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthEndpoints(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/live", h.Live)
	r.GET("/ready", h.Ready)

	tests := []struct {
		path       string
		wantCode   int
		wantStatus string
	}{
		{"/health", http.StatusOK, "ok"},
		{"/live", http.StatusOK, "ok"},
		{"/ready", http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

type fakePinger struct{ err error }

func (f fakePinger) HealthCheck(context.Context) error { return f.err }

func TestReadyChecks(t *testing.T) {
	tests := []struct {
		name       string
		deps       []dependency
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name: "all required ok, optional disabled",
			deps: []dependency{
				{name: "postgres", client: fakePinger{}, required: true},
				{name: "redis", client: fakePinger{}, required: true},
				{name: "milvus"},
			},
			wantCode:   http.StatusOK,
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok", "milvus": "disabled"},
		},
		{
			name: "required dependency down",
			deps: []dependency{
				{name: "postgres", client: fakePinger{}, required: true},
				{name: "redis", client: fakePinger{err: errors.New("connection refused")}, required: true},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "ok", "redis": "error"},
		},
		{
			name: "vector backend down",
			deps: []dependency{
				{name: "postgres", client: fakePinger{}, required: true},
				{name: "milvus", client: fakePinger{err: errors.New("timeout")}, required: true},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "ok", "milvus": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &HealthHandler{deps: tt.deps}
			r := gin.New()
			r.GET("/ready", h.Ready)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
			var body readinessResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got == nil || got.Status != want {
					t.Errorf("check %s = %+v, want %s", name, got, want)
				}
			}
		})
	}
}
