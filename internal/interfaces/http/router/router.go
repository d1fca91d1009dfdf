// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartcheck-api/internal/config"
	"smartcheck-api/internal/interfaces/http/handler"
	"smartcheck-api/internal/interfaces/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config

	smartCheck *handler.SmartCheckHandler
	items      *handler.ItemsHandler
	limiter    middleware.RateLimiter
}

// New 创建新的路由器
func New(cfg *config.Config, smartCheck *handler.SmartCheckHandler, items *handler.ItemsHandler, limiter middleware.RateLimiter) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:     engine,
		cfg:        cfg,
		smartCheck: smartCheck,
		items:      items,
		limiter:    limiter,
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
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 健康检查处理器
	healthHandler := handler.NewHealthHandler()

	// 系统端点
	r.engine.GET("/health", healthHandler.Health)
	r.engine.GET("/ready", healthHandler.Ready)
	r.engine.GET("/live", healthHandler.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 限流只覆盖改写流水线：它是唯一高成本端点
	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:     r.cfg.Security.RateLimit.Enabled,
		MaxRequests: r.cfg.Security.RateLimit.MaxRequests,
		Window:      r.cfg.Security.RateLimit.Window,
	}, r.limiter)

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	{
		// 改写流水线
		v1.POST("/smartcheck", rateLimit, r.smartCheck.Run)

		// 条目存储代理
		collections := v1.Group("/collections")
		{
			collections.GET("/:collectionID/items", r.items.List)
			collections.GET("/:collectionID/items/:itemID", r.items.Get)
			collections.PATCH("/:collectionID/items/:itemID", r.items.Patch)
		}

		// 资产上传
		sites := v1.Group("/sites")
		{
			sites.POST("/:siteID/assets", r.items.UploadAsset)
		}
	}
}
