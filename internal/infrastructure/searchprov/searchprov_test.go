package searchprov

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcheck-api/internal/config"
	"smartcheck-api/internal/infrastructure/httpx"
)

func newTestFetch() *httpx.Client {
	return httpx.New(httpx.Config{
		Timeout:     time.Second,
		MaxAttempts: 1,
	})
}

func TestTavilyClient_Search(t *testing.T) {
	var gotAuth string
	var gotReq tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(tavilyResponse{
			Query: gotReq.Query,
			Results: []tavilyResult{
				{Title: "Result", URL: "https://a.example", Content: "snippet", Score: 0.9},
			},
		})
	}))
	defer srv.Close()

	c := NewTavilyClient("test-key", srv.URL, newTestFetch())
	resp, err := c.Search(context.Background(), &Request{Query: "golang ttl cache", MaxResults: 3})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "golang ttl cache", gotReq.Query)
	assert.Equal(t, 3, gotReq.MaxResults)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://a.example", resp.Results[0].URL)
	assert.Equal(t, "snippet", resp.Results[0].Snippet)
}

func TestTavilyClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewTavilyClient("bad-key", srv.URL, newTestFetch())
	_, err := c.Search(context.Background(), &Request{Query: "q"})
	assert.Error(t, err)
}

func TestSearXNGClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "q", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(searxngResponse{
			Results: []searxngResult{
				{Title: "1", URL: "https://1.example", Content: "c1"},
				{Title: "2", URL: "https://2.example", Content: "c2"},
				{Title: "3", URL: "https://3.example", Content: "c3"},
			},
		})
	}))
	defer srv.Close()

	c := NewSearXNGClient(srv.URL, newTestFetch())
	resp, err := c.Search(context.Background(), &Request{Query: "q", MaxResults: 2})
	require.NoError(t, err)

	// 客户端按 MaxResults 截断
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://1.example", resp.Results[0].URL)
}

func TestNewSearchers(t *testing.T) {
	fetch := newTestFetch()

	searchers := NewSearchers(&config.SearchConfig{
		Tavily:  config.TavilyConfig{Enabled: true, APIKey: "k"},
		SearXNG: config.SearXNGConfig{Enabled: true, BaseURL: "http://localhost:8888"},
	}, fetch)
	assert.Len(t, searchers, 2)
	assert.Contains(t, searchers, "tavily")
	assert.Contains(t, searchers, "searxng")

	// 未启用的提供商不注册
	searchers = NewSearchers(&config.SearchConfig{
		Tavily: config.TavilyConfig{Enabled: true, APIKey: "k"},
	}, fetch)
	assert.Len(t, searchers, 1)
	assert.NotContains(t, searchers, "searxng")
}
