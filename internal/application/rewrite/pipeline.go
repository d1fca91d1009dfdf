package rewrite

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"smartcheck-api/internal/application/search"
	"smartcheck-api/internal/infrastructure/llm"
	"smartcheck-api/internal/infrastructure/memstore"
	apperrors "smartcheck-api/pkg/errors"
	"smartcheck-api/pkg/logger"
	"smartcheck-api/pkg/metrics"
)

var tracer = otel.Tracer("rewrite")

// Request 一次流水线运行的输入
type Request struct {
	Content      string
	Title        string
	Keywords     []string
	Instructions string
	// Providers 本次使用的搜索提供商；为空时使用全部已配置提供商
	Providers []string
	// Credential 请求级 LLM 凭证，覆盖配置的默认提供商
	Credential *llm.Credential
}

// Stats 运行统计，返回给调用方用于观测，不参与内部控制流
type Stats struct {
	SearchesPerformed int     `json:"searchesPerformed"`
	UniqueResultsUsed int     `json:"uniqueResultsUsed"`
	ElapsedSeconds    float64 `json:"elapsedSeconds"`
	WidgetsProtected  int     `json:"widgetsProtected"`
}

// Result 流水线结果
type Result struct {
	RewrittenContent string          `json:"rewrittenContent"`
	Stats            Stats           `json:"stats"`
	ResearchSample   []search.Result `json:"researchSample"`
	FromCache        bool            `json:"fromCache"`
}

// Researcher 搜索聚合端口（测试中可替换）
type Researcher interface {
	RunBatch(ctx context.Context, queries []string, providers []string) *search.BatchResult
}

// Options 流水线策略
type Options struct {
	// MaxQueries 查询生成上限
	MaxQueries int
	// RewriteTimeout 改写阶段 LLM 调用超时
	RewriteTimeout time.Duration
	// ContentPrefixRunes 查询生成提示词中内容前缀的最大长度
	ContentPrefixRunes int
	// ResearchSampleSize 返回给调用方的研究结果样本数
	ResearchSampleSize int
	// RejectOnDrift 结构漂移告警时回退到原始内容；默认仅告警
	RejectOnDrift bool
	// DriftRatio 标签数允许的相对漂移阈值
	DriftRatio float64
}

// Pipeline 改写编排器。阶段线性执行：
// CacheCheck → WidgetProtect → QueryGeneration → Search → Rewrite →
// WidgetRestore → CacheStore。失败的运行不缓存任何部分结果。
type Pipeline struct {
	caller     llm.Caller
	researcher Researcher
	results    *memstore.Store[*Result]
	opts       Options
}

// NewPipeline 创建流水线
func NewPipeline(caller llm.Caller, researcher Researcher, results *memstore.Store[*Result], opts Options) *Pipeline {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 8
	}
	if opts.RewriteTimeout <= 0 {
		opts.RewriteTimeout = 120 * time.Second
	}
	if opts.ContentPrefixRunes <= 0 {
		opts.ContentPrefixRunes = 2000
	}
	if opts.ResearchSampleSize <= 0 {
		opts.ResearchSampleSize = 15
	}
	if opts.DriftRatio <= 0 {
		opts.DriftRatio = 0.5
	}
	return &Pipeline{
		caller:     caller,
		researcher: researcher,
		results:    results,
		opts:       opts,
	}
}

// cacheKey 由原始内容与关键词/选项参数确定性派生
func cacheKey(req *Request) string {
	parts := append([]string{"pipeline", req.Content, req.Title, req.Instructions}, req.Keywords...)
	return memstore.HashKey(parts...)
}

// Run 执行一次端到端流水线运行
func (p *Pipeline) Run(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "rewrite.Run")
	defer span.End()

	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("content is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("title is required")
	}

	started := time.Now()

	// CacheCheck：命中则短路返回，其余阶段一律不执行
	key := cacheKey(req)
	if cached, ok := p.results.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("pipeline.cache_hit", true))
		metrics.PipelineRunsTotal.WithLabelValues("cache_hit").Inc()
		hit := *cached
		hit.FromCache = true
		return &hit, nil
	}

	// WidgetProtect：内容进入任何 LLM 提示词之前先保护
	protected, widgets := Protect(req.Content)
	span.SetAttributes(attribute.Int("pipeline.widgets", len(widgets)))

	// QueryGeneration：一次 LLM 调用；解析失败降级为零查询继续
	queries, err := p.generateQueries(ctx, req, protected)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("query_gen_failed").Inc()
		return nil, err
	}

	// Search：分批并发 + 全局 URL 去重
	batch := p.researcher.RunBatch(ctx, queries, req.Providers)
	findings := buildFindings(batch.Groups)

	// Rewrite：一次 LLM 调用，显式超时而不是悬挂
	rewritten, err := p.rewriteContent(ctx, req, protected, findings)
	if err != nil {
		return nil, err
	}

	missing := missingPlaceholders(rewritten, widgets)

	// WidgetRestore：按索引把第一处占位符替换回原片段
	restored := Restore(rewritten, widgets)

	restored = p.applyIntegrityPolicy(ctx, req.Content, restored, missing)

	sample := batch.Unique
	if len(sample) > p.opts.ResearchSampleSize {
		sample = sample[:p.opts.ResearchSampleSize]
	}

	result := &Result{
		RewrittenContent: restored,
		Stats: Stats{
			SearchesPerformed: batch.Attempted,
			UniqueResultsUsed: len(batch.Unique),
			ElapsedSeconds:    time.Since(started).Seconds(),
			WidgetsProtected:  len(widgets),
		},
		ResearchSample: sample,
	}

	// CacheStore：只有成功的运行才会走到这里
	p.results.Set(ctx, key, result)

	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	metrics.PipelineDuration.Observe(result.Stats.ElapsedSeconds)
	metrics.PipelineWidgetsProtected.Observe(float64(len(widgets)))

	logger.Info(ctx, "pipeline run completed",
		"queries", len(queries),
		"searches", batch.Attempted,
		"unique_results", len(batch.Unique),
		"widgets", len(widgets),
		"elapsed_s", result.Stats.ElapsedSeconds,
	)
	return result, nil
}

// generateQueries 查询生成阶段。LLM 调用失败对运行致命；
// 输出无法解析成数组时按零查询继续（降级而非失败）。
func (p *Pipeline) generateQueries(ctx context.Context, req *Request, protected string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "rewrite.QueryGeneration")
	defer span.End()

	prefix := truncateByRunes(protected, p.opts.ContentPrefixRunes)
	prompt := queryGenPrompt(req.Title, prefix, p.opts.MaxQueries)

	start := time.Now()
	raw, err := p.caller.Complete(ctx, req.Credential, queryGenSystem, prompt)
	metrics.LLMCallDuration.WithLabelValues("query_gen").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("query_gen", "error").Inc()
		span.RecordError(err)
		return nil, apperrors.ErrQueryGenFailed.WithError(err)
	}
	metrics.LLMCallTotal.WithLabelValues("query_gen", "ok").Inc()

	queries := ParseQueries(raw, p.opts.MaxQueries)
	if len(queries) == 0 {
		// 继续携带空研究上下文运行
		logger.Warn(ctx, "query generation output not parseable, proceeding with zero queries")
	}
	span.SetAttributes(attribute.Int("pipeline.queries", len(queries)))
	return queries, nil
}

// rewriteContent 改写阶段。超时与上游失败都对运行致命，
// 且携带可区分的错误种类。
func (p *Pipeline) rewriteContent(ctx context.Context, req *Request, protected, findings string) (string, error) {
	ctx, span := tracer.Start(ctx, "rewrite.Rewrite")
	defer span.End()

	rewriteCtx, cancel := context.WithTimeout(ctx, p.opts.RewriteTimeout)
	defer cancel()

	prompt := rewritePrompt(req.Title, protected, findings, req.Keywords, req.Instructions)

	start := time.Now()
	raw, err := p.caller.Complete(rewriteCtx, req.Credential, rewriteSystem, prompt)
	metrics.LLMCallDuration.WithLabelValues("rewrite").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) || rewriteCtx.Err() != nil {
			metrics.LLMCallTotal.WithLabelValues("rewrite", "timeout").Inc()
			metrics.PipelineRunsTotal.WithLabelValues("rewrite_timeout").Inc()
			return "", apperrors.ErrRewriteTimeout.WithError(err)
		}
		metrics.LLMCallTotal.WithLabelValues("rewrite", "error").Inc()
		metrics.PipelineRunsTotal.WithLabelValues("rewrite_failed").Inc()
		return "", apperrors.ErrRewriteFailed.WithError(err)
	}
	metrics.LLMCallTotal.WithLabelValues("rewrite", "ok").Inc()

	// 改写输出不做 HTML 校验，只剥离首尾代码围栏后按文本接受
	out := StripCodeFences(raw)
	if out == "" {
		metrics.PipelineRunsTotal.WithLabelValues("rewrite_failed").Inc()
		return "", apperrors.ErrRewriteFailed.WithDetail("empty rewrite output")
	}
	return out, nil
}

// applyIntegrityPolicy 记录完整性告警；配置了回退策略且出现结构
// 漂移时回退到原始内容，否则原样返回。
func (p *Pipeline) applyIntegrityPolicy(ctx context.Context, original, restored string, missing []int) string {
	warnings := checkIntegrity(original, restored, missing, integrityPolicy{
		driftRatio: p.opts.DriftRatio,
		shortRatio: 0.2,
	})
	for _, w := range warnings {
		metrics.IntegrityWarningsTotal.WithLabelValues(w.Kind).Inc()
		logger.Warn(ctx, "post-rewrite integrity warning",
			"kind", w.Kind,
			"detail", w.Detail,
		)
	}

	if p.opts.RejectOnDrift && hasDriftWarning(warnings) {
		logger.Warn(ctx, "structural drift exceeded policy, falling back to original content")
		return original
	}
	return restored
}
