// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"smartcheck-api/internal/application/rewrite"
	"smartcheck-api/internal/application/search"
	"smartcheck-api/internal/config"
	"smartcheck-api/internal/infrastructure/httpx"
	"smartcheck-api/internal/infrastructure/llm"
	"smartcheck-api/internal/infrastructure/memstore"
	"smartcheck-api/internal/infrastructure/searchprov"
	"smartcheck-api/internal/infrastructure/webflow"
	"smartcheck-api/internal/interfaces/http/handler"
	"smartcheck-api/internal/interfaces/http/router"
	"smartcheck-api/pkg/logger"
)

// App 已装配完成的应用
type App struct {
	Router  *router.Router
	Sweeper *memstore.Sweeper
}

// InitializeApp 初始化整个应用。状态全部在进程内存中，
// 返回的 cleanup 负责停掉后台清扫协程。
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	// 出站 HTTP 客户端（超时 + 重试）
	fetch := httpx.New(httpx.Config{
		Timeout:     cfg.Fetch.Timeout,
		MaxAttempts: cfg.Fetch.MaxAttempts,
		BackoffBase: cfg.Fetch.BackoffBase,
		BackoffCap:  cfg.Fetch.BackoffCap,
	})

	// 三个独立 TTL 存储 + 限流器，统一挂到清扫器上
	searchCache := memstore.NewStore[[]search.Result]("search", cfg.Cache.SearchTTL)
	listingCache := memstore.NewStore[[]webflow.Item]("listing", cfg.Cache.ListingTTL)
	pipelineCache := memstore.NewStore[*rewrite.Result]("pipeline", cfg.Cache.PipelineTTL)
	limiter := memstore.NewRateLimiter()

	sweeper := memstore.NewSweeper(cfg.Cache.SweepInterval,
		searchCache, listingCache, pipelineCache, limiter)
	sweeper.Start()

	// 搜索提供商与聚合器
	searchers := searchprov.NewSearchers(&cfg.Search, fetch)
	if len(searchers) == 0 {
		logger.Warn(ctx, "no search provider enabled, rewrite will run without research findings")
	}
	aggregator := search.NewAggregator(searchers, searchCache, search.Options{
		PerQueryCount: cfg.Search.PerQueryCount,
		BatchSize:     cfg.Search.BatchSize,
		BatchDelay:    cfg.Search.BatchDelay,
	})

	// LLM 工厂与改写流水线
	llmFactory := llm.NewFactory(cfg)
	pipeline := rewrite.NewPipeline(llmFactory, aggregator, pipelineCache, rewrite.Options{
		MaxQueries:         cfg.Pipeline.MaxQueries,
		RewriteTimeout:     cfg.Pipeline.RewriteTimeout,
		ContentPrefixRunes: cfg.Pipeline.ContentPrefixRunes,
		ResearchSampleSize: cfg.Pipeline.ResearchSampleSize,
		RejectOnDrift:      cfg.Pipeline.RejectOnDrift,
		DriftRatio:         cfg.Pipeline.DriftRatio,
	})

	// 条目存储代理
	itemStore := webflow.NewClient(cfg.Webflow.BaseURL, cfg.Webflow.Token,
		cfg.Webflow.PageSize, fetch, listingCache)

	// HTTP 层
	smartCheckHandler := handler.NewSmartCheckHandler(pipeline)
	itemsHandler := handler.NewItemsHandler(itemStore)
	r := router.New(cfg, smartCheckHandler, itemsHandler, limiter)

	cleanup := func() {
		sweeper.Stop()
	}

	return &App{Router: r, Sweeper: sweeper}, cleanup, nil
}
