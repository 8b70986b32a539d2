package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{"propagated", "req-123", true},
		{"missing", "", false},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"control chars", "abc\ninjected", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID())
			r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header = %q, body = %q", got, w.Body.String())
			}
			if (got == tt.header) != tt.wantSame {
				t.Errorf("request id = %q, propagated = %v, want %v", got, got == tt.header, tt.wantSame)
			}
		})
	}
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RateLimitConfig
		limiter  *fakeLimiter
		wantCode int
		wantCall bool
	}{
		{"disabled", RateLimitConfig{}, &fakeLimiter{}, http.StatusOK, false},
		{"allowed", RateLimitConfig{Enabled: true, RequestsPerSecond: 5}, &fakeLimiter{allowed: true}, http.StatusOK, true},
		{"exceeded", RateLimitConfig{Enabled: true, RequestsPerSecond: 5}, &fakeLimiter{}, http.StatusTooManyRequests, true},
		{"limiter down fails open", RateLimitConfig{Enabled: true}, &fakeLimiter{err: errors.New("redis down")}, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RateLimit(tt.cfg, tt.limiter))
			r.GET("/api/v1/search/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/stats", nil))
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if called := len(tt.limiter.keys) > 0; called != tt.wantCall {
				t.Errorf("limiter called = %v, want %v", called, tt.wantCall)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		role     string
		wantCode int
	}{
		{"auth disabled", false, "", http.StatusOK},
		{"operator", true, "operator", http.StatusOK},
		{"viewer", true, "viewer", http.StatusForbidden},
		{"no role", true, "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tt.role != "" {
					c.Set("role", tt.role)
				}
			})
			r.POST("/", RequireOperator(tt.enabled), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("segment writer crashed") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error_code":"1007"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
