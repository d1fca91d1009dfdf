// Package search 将多提供商的网络搜索聚合为统一结果：
// 按查询缓存、分批并发执行、跨提供商按 URL 全局去重。
package search

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"smartcheck-api/internal/infrastructure/memstore"
	"smartcheck-api/internal/infrastructure/searchprov"
	"smartcheck-api/pkg/logger"
	"smartcheck-api/pkg/metrics"
)

var tracer = otel.Tracer("search")

// Result 归一化后的单条搜索结果
type Result struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Provider string `json:"provider"`
}

// QueryGroup 一个查询在某提供商下的结果组。组内保持提供商返回顺序，
// 跨组不保证顺序。
type QueryGroup struct {
	Query    string   `json:"query"`
	Provider string   `json:"provider"`
	Results  []Result `json:"results"`
}

// BatchResult 一次批量搜索的汇总
type BatchResult struct {
	// Groups 按 (查询, 提供商) 分组的原始结果
	Groups []QueryGroup
	// Unique 跨查询、跨提供商按 URL 去重后的结果（首见保留）
	Unique []Result
	// Attempted 实际发起的 查询×提供商 尝试次数（非去重结果数）
	Attempted int
}

// Options 批量搜索参数
type Options struct {
	// PerQueryCount 每个查询请求的结果条数
	PerQueryCount int
	// BatchSize 每批并发的查询数
	BatchSize int
	// BatchDelay 批与批之间的固定间隔
	BatchDelay time.Duration
}

// Aggregator 搜索聚合器
type Aggregator struct {
	searchers map[string]searchprov.Searcher
	cache     *memstore.Store[[]Result]
	opts      Options
}

// NewAggregator 创建聚合器
func NewAggregator(searchers map[string]searchprov.Searcher, cache *memstore.Store[[]Result], opts Options) *Aggregator {
	if opts.PerQueryCount <= 0 {
		opts.PerQueryCount = 5
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 3
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = time.Second
	}
	return &Aggregator{
		searchers: searchers,
		cache:     cache,
		opts:      opts,
	}
}

// Providers 当前可用的提供商名称
func (a *Aggregator) Providers() []string {
	names := make([]string, 0, len(a.searchers))
	for name := range a.searchers {
		names = append(names, name)
	}
	return names
}

// Search 在单个提供商上执行一次查询。先查缓存；未命中时发起一次
// 弹性请求并缓存成功结果。任何失败（超时、非 2xx、解析失败）都
// 返回空列表而不是向上传播——搜索失败对流水线非致命。
func (a *Aggregator) Search(ctx context.Context, provider, query string, count int) []Result {
	ctx, span := tracer.Start(ctx, "search.Search")
	span.SetAttributes(
		attribute.String("search.provider", provider),
		attribute.String("search.query", query),
	)
	defer span.End()

	s, ok := a.searchers[provider]
	if !ok {
		return nil
	}

	key := memstore.HashKey("search", provider, query, strconv.Itoa(count))
	if cached, hit := a.cache.Get(ctx, key); hit {
		return cached
	}

	resp, err := s.Search(ctx, &searchprov.Request{Query: query, MaxResults: count})
	if err != nil {
		span.RecordError(err)
		metrics.SearchCallsTotal.WithLabelValues(provider, "error").Inc()
		logger.Warn(ctx, "search provider call failed",
			"provider", provider,
			"query", query,
			"error", err.Error(),
		)
		return nil
	}
	metrics.SearchCallsTotal.WithLabelValues(provider, "ok").Inc()

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, Result{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Snippet,
			Provider: provider,
		})
	}

	a.cache.Set(ctx, key, results)
	return results
}

// RunBatch 对一组查询跨全部提供商执行批量搜索。查询按固定批大小
// 分批；批内所有 查询×提供商 并发，批间插入固定延迟以尊重提供商
// 限速。全部批完成后按 URL 全局去重（首见保留，跨提供商、跨查询）。
// Attempted 统计发起的尝试次数，与去重后的结果数分别上报。
func (a *Aggregator) RunBatch(ctx context.Context, queries []string, providers []string) *BatchResult {
	ctx, span := tracer.Start(ctx, "search.RunBatch")
	span.SetAttributes(attribute.Int("search.query_count", len(queries)))
	defer span.End()

	if len(providers) == 0 {
		providers = a.Providers()
	}

	out := &BatchResult{}
	if len(queries) == 0 || len(providers) == 0 {
		return out
	}

	for start := 0; start < len(queries); start += a.opts.BatchSize {
		end := start + a.opts.BatchSize
		if end > len(queries) {
			end = len(queries)
		}
		batch := queries[start:end]

		// 批内并发：每个 查询×提供商 一个槽位，按索引写入保持确定顺序
		groups := make([]QueryGroup, len(batch)*len(providers))
		var wg sync.WaitGroup
		for qi, q := range batch {
			for pi, p := range providers {
				wg.Add(1)
				go func(slot int, query, provider string) {
					defer wg.Done()
					results := a.Search(ctx, provider, query, a.opts.PerQueryCount)
					groups[slot] = QueryGroup{Query: query, Provider: provider, Results: results}
				}(qi*len(providers)+pi, q, p)
			}
		}
		wg.Wait()

		out.Groups = append(out.Groups, groups...)
		out.Attempted += len(batch) * len(providers)

		// 最后一批之后不再等待
		if end < len(queries) {
			select {
			case <-time.After(a.opts.BatchDelay):
			case <-ctx.Done():
				span.RecordError(ctx.Err())
			}
		}
	}

	out.Unique = dedupByURL(out.Groups)

	span.SetAttributes(
		attribute.Int("search.attempted", out.Attempted),
		attribute.Int("search.unique_results", len(out.Unique)),
	)
	metrics.SearchResultsUnique.Observe(float64(len(out.Unique)))
	return out
}

// dedupByURL 跨组按 URL 去重，首见保留
func dedupByURL(groups []QueryGroup) []Result {
	seen := make(map[string]struct{})
	var unique []Result
	for _, g := range groups {
		for _, r := range g.Results {
			if r.URL == "" {
				continue
			}
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			unique = append(unique, r)
		}
	}
	return unique
}
