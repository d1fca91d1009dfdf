package rewrite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcheck-api/internal/application/search"
	"smartcheck-api/internal/infrastructure/llm"
	"smartcheck-api/internal/infrastructure/memstore"
	apperrors "smartcheck-api/pkg/errors"
)

// fakeCaller 按阶段（system 提示词区分）返回脚本化补全结果
type fakeCaller struct {
	queryGenOut string
	queryGenErr error
	rewriteOut  string
	rewriteErr  error
	// rewriteBlocks 让改写阶段一直等到 context 超时
	rewriteBlocks bool

	queryGenCalls int
	rewriteCalls  int
	rewritePrompt string
}

func (f *fakeCaller) Complete(ctx context.Context, _ *llm.Credential, system, prompt string) (string, error) {
	if system == queryGenSystem {
		f.queryGenCalls++
		return f.queryGenOut, f.queryGenErr
	}
	f.rewriteCalls++
	f.rewritePrompt = prompt
	if f.rewriteBlocks {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.rewriteOut, f.rewriteErr
}

// fakeResearcher 返回固定批量结果并记录收到的查询
type fakeResearcher struct {
	batch      *search.BatchResult
	gotQueries []string
}

func (f *fakeResearcher) RunBatch(_ context.Context, queries, _ []string) *search.BatchResult {
	f.gotQueries = queries
	if f.batch == nil {
		return &search.BatchResult{}
	}
	return f.batch
}

func newTestPipeline(caller *fakeCaller, researcher *fakeResearcher, opts Options) *Pipeline {
	return NewPipeline(caller, researcher, memstore.NewStore[*Result]("pipeline", time.Hour), opts)
}

func sampleBatch() *search.BatchResult {
	results := []search.Result{
		{Title: "A", URL: "https://a.example", Snippet: "snippet a", Provider: "tavily"},
		{Title: "B", URL: "https://b.example", Snippet: "snippet b", Provider: "tavily"},
	}
	return &search.BatchResult{
		Groups:    []search.QueryGroup{{Query: "q1", Provider: "tavily", Results: results}},
		Unique:    results,
		Attempted: 2,
	}
}

func TestPipeline_RunWithoutWidgets(t *testing.T) {
	caller := &fakeCaller{
		queryGenOut: `["current price of X"]`,
		rewriteOut:  `<p>updated content</p>`,
	}
	researcher := &fakeResearcher{batch: sampleBatch()}
	p := newTestPipeline(caller, researcher, Options{})

	res, err := p.Run(context.Background(), &Request{
		Content: `<p>stale content</p>`,
		Title:   "Post",
	})
	require.NoError(t, err)

	assert.Equal(t, `<p>updated content</p>`, res.RewrittenContent)
	assert.Equal(t, 0, res.Stats.WidgetsProtected)
	assert.Equal(t, 2, res.Stats.SearchesPerformed)
	assert.Equal(t, 2, res.Stats.UniqueResultsUsed)
	assert.False(t, res.FromCache)
	assert.Equal(t, []string{"current price of X"}, researcher.gotQueries)
	assert.Len(t, res.ResearchSample, 2)
}

func TestPipeline_WidgetRoundTrip(t *testing.T) {
	content := `<p>intro</p><iframe src="https://player.example/v/1"></iframe><p>outro</p>`
	caller := &fakeCaller{
		queryGenOut: `["q"]`,
		// 改写服务保留占位符，改动周围文本
		rewriteOut: `<p>fresh intro</p>___WIDGET_0___<p>fresh outro</p>`,
	}
	p := newTestPipeline(caller, &fakeResearcher{}, Options{})

	res, err := p.Run(context.Background(), &Request{Content: content, Title: "Post"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.WidgetsProtected)
	assert.Contains(t, res.RewrittenContent, `<iframe src="https://player.example/v/1"></iframe>`)
	assert.NotContains(t, res.RewrittenContent, "___WIDGET_")

	// 提示词里进入 LLM 的是受保护内容，不是原始 iframe
	assert.Contains(t, caller.rewritePrompt, "___WIDGET_0___")
	assert.NotContains(t, caller.rewritePrompt, "<iframe")
}

func TestPipeline_CacheHitShortCircuits(t *testing.T) {
	caller := &fakeCaller{queryGenOut: `["q"]`, rewriteOut: `<p>v</p>`}
	p := newTestPipeline(caller, &fakeResearcher{}, Options{})
	req := &Request{Content: `<p>c</p>`, Title: "Post"}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.RewrittenContent, second.RewrittenContent)

	// 命中后不再触发任何 LLM 调用
	assert.Equal(t, 1, caller.queryGenCalls)
	assert.Equal(t, 1, caller.rewriteCalls)
}

func TestPipeline_DistinctKeywordsMissCache(t *testing.T) {
	caller := &fakeCaller{queryGenOut: `["q"]`, rewriteOut: `<p>v</p>`}
	p := newTestPipeline(caller, &fakeResearcher{}, Options{})

	_, err := p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post", Keywords: []string{"a"}})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post", Keywords: []string{"b"}})
	require.NoError(t, err)

	assert.Equal(t, 2, caller.rewriteCalls)
}

func TestPipeline_QueryGenLLMFailureIsFatal(t *testing.T) {
	caller := &fakeCaller{queryGenErr: apperrors.New(apperrors.CodeLLMProviderError, "llm call failed")}
	p := newTestPipeline(caller, &fakeResearcher{}, Options{})

	_, err := p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeQueryGenFailed, apperrors.AsAppError(err).Code)
	assert.Equal(t, 0, caller.rewriteCalls)
}

func TestPipeline_UnparseableQueriesDegradeToZero(t *testing.T) {
	caller := &fakeCaller{
		queryGenOut: `sorry, I cannot produce an array today`,
		rewriteOut:  `<p>still rewritten</p>`,
	}
	researcher := &fakeResearcher{}
	p := newTestPipeline(caller, researcher, Options{})

	res, err := p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post"})
	require.NoError(t, err)
	assert.Empty(t, researcher.gotQueries)
	assert.Equal(t, `<p>still rewritten</p>`, res.RewrittenContent)
}

func TestPipeline_RewriteTimeout(t *testing.T) {
	caller := &fakeCaller{queryGenOut: `["q"]`, rewriteBlocks: true}
	p := newTestPipeline(caller, &fakeResearcher{}, Options{RewriteTimeout: 20 * time.Millisecond})

	_, err := p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRewriteTimeout, apperrors.AsAppError(err).Code)

	// 失败的运行不缓存：重试会再次走完整流水线
	caller.rewriteBlocks = false
	caller.rewriteOut = `<p>v</p>`
	res, err := p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post"})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestPipeline_EmptyRewriteOutputFails(t *testing.T) {
	caller := &fakeCaller{queryGenOut: `["q"]`, rewriteOut: "```\n```"}
	p := newTestPipeline(caller, &fakeResearcher{}, Options{})

	_, err := p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRewriteFailed, apperrors.AsAppError(err).Code)
}

func TestPipeline_ValidatesInput(t *testing.T) {
	p := newTestPipeline(&fakeCaller{}, &fakeResearcher{}, Options{})

	_, err := p.Run(context.Background(), &Request{Content: "  ", Title: "Post"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	_, err = p.Run(context.Background(), &Request{Content: "<p>c</p>", Title: ""})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
}

func TestPipeline_RejectOnDriftFallsBack(t *testing.T) {
	content := `<p>a</p><p>b</p><p>c</p><p>d</p>`
	caller := &fakeCaller{
		queryGenOut: `["q"]`,
		// 改写结果丢掉了大部分结构
		rewriteOut: `<p>only one tag survives with plenty of text to avoid the length warning</p>`,
	}

	// 默认策略：仅告警，结果原样返回
	p := newTestPipeline(caller, &fakeResearcher{}, Options{DriftRatio: 0.5})
	res, err := p.Run(context.Background(), &Request{Content: content, Title: "Post"})
	require.NoError(t, err)
	assert.Equal(t, caller.rewriteOut, res.RewrittenContent)

	// 回退策略：漂移超阈值时返回原始内容
	p = newTestPipeline(caller, &fakeResearcher{}, Options{DriftRatio: 0.5, RejectOnDrift: true})
	res, err = p.Run(context.Background(), &Request{Content: content, Title: "Post", Keywords: []string{"distinct"}})
	require.NoError(t, err)
	assert.Equal(t, content, res.RewrittenContent)
}

func TestPipeline_ResearchSampleCapped(t *testing.T) {
	var results []search.Result
	for i := 0; i < 30; i++ {
		results = append(results, search.Result{URL: string(rune('a'+i)) + ".example", Title: "r"})
	}
	batch := &search.BatchResult{Unique: results, Attempted: 30}

	caller := &fakeCaller{queryGenOut: `["q"]`, rewriteOut: `<p>v</p>`}
	p := newTestPipeline(caller, &fakeResearcher{batch: batch}, Options{ResearchSampleSize: 15})

	res, err := p.Run(context.Background(), &Request{Content: `<p>c</p>`, Title: "Post"})
	require.NoError(t, err)
	assert.Len(t, res.ResearchSample, 15)
	assert.Equal(t, 30, res.Stats.UniqueResultsUsed)
}
