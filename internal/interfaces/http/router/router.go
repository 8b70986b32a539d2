// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"video-sentinel/internal/config"
	"video-sentinel/internal/interfaces/http/handler"
	"video-sentinel/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health    *handler.HealthHandler
	Recording *handler.RecordingHandler
	Search    *handler.SearchHandler
	Alert     *handler.AlertHandler
	Segment   *handler.SegmentHandler
	Video     *handler.VideoHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器，limiter 为 nil 时不限流
func New(cfg *config.Config, handlers *Handlers, limiter middleware.RateLimiter) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, middleware.DefaultSkipPaths...))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.metricsPath()))
	}

	r.engine.Use(middleware.Audit("/videos"))
}

func (r *Router) metricsPath() string {
	if p := r.cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	// 系统端点
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	jwtCfg := r.cfg.Security.JWT
	auth := middleware.Auth(middleware.AuthConfig{
		Secret:          jwtCfg.Secret,
		Issuer:          jwtCfg.Issuer,
		SkipPaths:       middleware.DefaultSkipPaths,
		QueryTokenPaths: []string{"/videos"},
		Enabled:         jwtCfg.Enabled,
	})
	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
		Burst:             r.cfg.Security.RateLimit.Burst,
	}, r.limiter)

	// 录像文件，<video> 通过 ?token= 认证，不参与限流
	r.engine.GET("/videos/*path", auth, h.Video.Serve)
	r.engine.HEAD("/videos/*path", auth, h.Video.Serve)

	// API v1 路由组
	v1 := r.engine.Group("/api/v1", auth, rateLimit)
	RegisterV1Routes(v1, h, middleware.RequireOperator(jwtCfg.Enabled))
}
