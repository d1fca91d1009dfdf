package searchprov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"smartcheck-api/internal/infrastructure/httpx"
)

const defaultTavilyURL = "https://api.tavily.com/search"

// TavilyClient Tavily API 客户端
type TavilyClient struct {
	apiKey  string
	baseURL string
	fetch   *httpx.Client
}

// NewTavilyClient 创建一个新的 Tavily 客户端
func NewTavilyClient(apiKey, baseURL string, fetch *httpx.Client) *TavilyClient {
	if baseURL == "" {
		baseURL = defaultTavilyURL
	}
	return &TavilyClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		fetch:   fetch,
	}
}

// Ensure TavilyClient implements Searcher
var _ Searcher = (*TavilyClient)(nil)

// Name implements Searcher
func (c *TavilyClient) Name() string {
	return "tavily"
}

// tavilyRequest Tavily 搜索请求参数
type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"` // basic or advanced
	MaxResults  int    `json:"max_results,omitempty"`
}

// tavilyResponse Tavily 搜索响应
type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

// tavilyResult 单个搜索结果
type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search implements Searcher
func (c *TavilyClient) Search(ctx context.Context, req *Request) (*Response, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:       req.Query,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("Content-Type", "application/json")

	resp, err := c.fetch.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    c.baseURL,
		Header: header,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("tavily api error (status %d): %s", resp.StatusCode, string(resp.Body))
	}

	var searchResp tavilyResponse
	if err := json.Unmarshal(resp.Body, &searchResp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	var results []Result
	for _, r := range searchResp.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	return &Response{Results: results}, nil
}
