package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcheck-api/internal/infrastructure/memstore"
	"smartcheck-api/internal/infrastructure/searchprov"
)

// fakeSearcher 为每个查询返回可预测结果并计数调用
type fakeSearcher struct {
	name  string
	err   error
	calls atomic.Int32
	// urls 为每个查询返回的 URL 列表；空时按查询派生
	urls []string
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(_ context.Context, req *searchprov.Request) (*searchprov.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	urls := f.urls
	if len(urls) == 0 {
		urls = []string{fmt.Sprintf("https://%s.example/%s", f.name, req.Query)}
	}
	resp := &searchprov.Response{}
	for _, u := range urls {
		resp.Results = append(resp.Results, searchprov.Result{Title: "t", URL: u, Snippet: "s"})
	}
	return resp, nil
}

func newTestAggregator(searchers map[string]searchprov.Searcher) *Aggregator {
	return NewAggregator(searchers, memstore.NewStore[[]Result]("search", time.Hour), Options{
		BatchSize:  3,
		BatchDelay: time.Millisecond,
	})
}

func TestAggregator_AttemptedCountsQueriesTimesProviders(t *testing.T) {
	a := newTestAggregator(map[string]searchprov.Searcher{
		"p1": &fakeSearcher{name: "p1"},
		"p2": &fakeSearcher{name: "p2"},
	})

	batch := a.RunBatch(context.Background(), []string{"q1", "q2", "q3"}, nil)
	assert.Equal(t, 6, batch.Attempted)
	assert.Len(t, batch.Groups, 6)
}

func TestAggregator_DedupByURLFirstWins(t *testing.T) {
	// 两个提供商对同一查询返回相同 URL
	shared := []string{"https://dup.example/page"}
	a := newTestAggregator(map[string]searchprov.Searcher{
		"p1": &fakeSearcher{name: "p1", urls: shared},
		"p2": &fakeSearcher{name: "p2", urls: shared},
	})

	batch := a.RunBatch(context.Background(), []string{"q"}, []string{"p1", "p2"})
	require.Len(t, batch.Unique, 1)
	assert.Equal(t, "https://dup.example/page", batch.Unique[0].URL)
	// 首见保留：归属第一个发起的提供商
	assert.Equal(t, "p1", batch.Unique[0].Provider)
	assert.Equal(t, 2, batch.Attempted)
}

func TestAggregator_ProviderFailureNonFatal(t *testing.T) {
	a := newTestAggregator(map[string]searchprov.Searcher{
		"ok":   &fakeSearcher{name: "ok"},
		"down": &fakeSearcher{name: "down", err: errors.New("upstream down")},
	})

	batch := a.RunBatch(context.Background(), []string{"q"}, []string{"ok", "down"})
	assert.Equal(t, 2, batch.Attempted)
	require.Len(t, batch.Unique, 1)
	assert.Equal(t, "ok", batch.Unique[0].Provider)
}

func TestAggregator_SearchCachesSuccess(t *testing.T) {
	s := &fakeSearcher{name: "p1"}
	a := newTestAggregator(map[string]searchprov.Searcher{"p1": s})
	ctx := context.Background()

	first := a.Search(ctx, "p1", "q", 5)
	second := a.Search(ctx, "p1", "q", 5)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), s.calls.Load(), "second call must come from cache")
}

func TestAggregator_SearchFailureNotCached(t *testing.T) {
	s := &fakeSearcher{name: "p1", err: errors.New("boom")}
	a := newTestAggregator(map[string]searchprov.Searcher{"p1": s})
	ctx := context.Background()

	assert.Empty(t, a.Search(ctx, "p1", "q", 5))
	assert.Empty(t, a.Search(ctx, "p1", "q", 5))
	assert.Equal(t, int32(2), s.calls.Load(), "failures must not be cached")
}

func TestAggregator_UnknownProvider(t *testing.T) {
	a := newTestAggregator(map[string]searchprov.Searcher{})
	assert.Empty(t, a.Search(context.Background(), "nope", "q", 5))

	batch := a.RunBatch(context.Background(), []string{"q"}, nil)
	assert.Zero(t, batch.Attempted)
	assert.Empty(t, batch.Unique)
}

func TestAggregator_EmptyQueries(t *testing.T) {
	a := newTestAggregator(map[string]searchprov.Searcher{"p1": &fakeSearcher{name: "p1"}})
	batch := a.RunBatch(context.Background(), nil, nil)
	assert.Zero(t, batch.Attempted)
	assert.Empty(t, batch.Groups)
}
