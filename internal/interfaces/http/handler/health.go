// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"video-sentinel/internal/infrastructure/persistence/milvus"
	"video-sentinel/internal/infrastructure/persistence/postgres"
	"video-sentinel/internal/infrastructure/persistence/redis"
)

const readinessTimeout = 2 * time.Second

// pinger 可做连通性检查的依赖
type pinger interface {
	HealthCheck(ctx context.Context) error
}

// dependency 就绪检查项；client 为空时 required 项直接判为未就绪
type dependency struct {
	name     string
	client   pinger
	required bool
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler 创建健康检查处理器
// Postgres 与 Redis 必需；Milvus 只在作为向量后端时注入，注入后同样必需
func NewHealthHandler(pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *HealthHandler {
	h := &HealthHandler{}
	h.add("postgres", pg != nil, pg, true)
	h.add("redis", redisClient != nil, redisClient, true)
	h.add("milvus", milvusClient != nil, milvusClient, false)
	return h
}

func (h *HealthHandler) add(name string, present bool, client pinger, required bool) {
	d := dependency{name: name, required: required}
	if present {
		d.client = client
		d.required = true
	}
	h.deps = append(h.deps, d)
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready 就绪检查接口，任一必需依赖不可用时返回 503
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]*readinessCheck, len(h.deps))
	ready := true
	for _, d := range h.deps {
		check := probe(ctx, d)
		checks[d.name] = check
		if d.required && check.Status != "ok" {
			ready = false
		}
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func probe(ctx context.Context, d dependency) *readinessCheck {
	if d.client == nil {
		if d.required {
			return &readinessCheck{Status: "missing", Error: d.name + " client not configured"}
		}
		return &readinessCheck{Status: "disabled"}
	}
	start := time.Now()
	err := d.client.HealthCheck(ctx)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = "error"
		check.Error = err.Error()
	}
	return check
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
