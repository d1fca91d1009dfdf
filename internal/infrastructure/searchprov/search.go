// Package searchprov 定义通用搜索接口及各提供商客户端
package searchprov

import "context"

// Searcher 定义通用的搜索接口
type Searcher interface {
	// Name 提供商标识，用于结果归属与指标标签
	Name() string
	// Search 执行一次搜索
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query      string
	MaxResults int
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title   string
	URL     string
	Snippet string
}
