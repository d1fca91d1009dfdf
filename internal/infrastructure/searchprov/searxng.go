package searchprov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"smartcheck-api/internal/infrastructure/httpx"
)

// SearXNGClient SearXNG API 客户端
type SearXNGClient struct {
	baseURL string
	fetch   *httpx.Client
}

// NewSearXNGClient 创建一个新的 SearXNG 客户端
func NewSearXNGClient(baseURL string, fetch *httpx.Client) *SearXNGClient {
	return &SearXNGClient{
		baseURL: baseURL,
		fetch:   fetch,
	}
}

// Ensure SearXNGClient implements Searcher
var _ Searcher = (*SearXNGClient)(nil)

// Name implements Searcher
func (c *SearXNGClient) Name() string {
	return "searxng"
}

// searxngResponse SearXNG 响应结构
type searxngResponse struct {
	Query   string          `json:"query"`
	Results []searxngResult `json:"results"`
}

// searxngResult SearXNG 单条结果
type searxngResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search implements Searcher
func (c *SearXNGClient) Search(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = "/search"

	q := u.Query()
	q.Set("q", req.Query)
	q.Set("format", "json")
	q.Set("categories", "general")
	u.RawQuery = q.Encode()

	header := http.Header{}
	// 避免被简单的反爬虫策略拦截
	header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := c.fetch.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		URL:    u.String(),
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("searxng api error (status %d): %s", resp.StatusCode, string(resp.Body))
	}

	var searchResp searxngResponse
	if err := json.Unmarshal(resp.Body, &searchResp); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	var results []Result
	for i, r := range searchResp.Results {
		if i >= maxResults {
			break
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	return &Response{Results: results}, nil
}
