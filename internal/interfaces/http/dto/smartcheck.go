package dto

import "smartcheck-api/internal/application/rewrite"

// LLMCredential 请求级 LLM 凭证
type LLMCredential struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
}

// SmartCheckRequest 研究改写流水线请求
type SmartCheckRequest struct {
	// Content 原始 HTML 内容
	Content string `json:"content" binding:"required"`
	// Title 文章标题
	Title string `json:"title" binding:"required"`
	// Keywords 可选的关键词/优化提示
	Keywords []string `json:"keywords"`
	// Instructions 可选的附加改写指令
	Instructions string `json:"instructions"`
	// Providers 本次使用的搜索提供商名称
	Providers []string `json:"providers"`
	// LLM 请求级 LLM 凭证覆盖
	LLM *LLMCredential `json:"llm"`
}

// SmartCheckStats 运行统计
type SmartCheckStats struct {
	SearchesPerformed int     `json:"searches_performed"`
	UniqueResultsUsed int     `json:"unique_results_used"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	WidgetsProtected  int     `json:"widgets_protected"`
}

// ResearchResult 返回给调用方的研究结果样本项
type ResearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Provider string `json:"provider"`
}

// SmartCheckResponse 流水线响应
type SmartCheckResponse struct {
	RewrittenContent string           `json:"rewritten_content"`
	Stats            SmartCheckStats  `json:"stats"`
	ResearchSample   []ResearchResult `json:"research_sample"`
	FromCache        bool             `json:"from_cache"`
}

// FromPipelineResult 将流水线结果转换为响应 DTO
func FromPipelineResult(r *rewrite.Result) SmartCheckResponse {
	resp := SmartCheckResponse{
		RewrittenContent: r.RewrittenContent,
		Stats: SmartCheckStats{
			SearchesPerformed: r.Stats.SearchesPerformed,
			UniqueResultsUsed: r.Stats.UniqueResultsUsed,
			ElapsedSeconds:    r.Stats.ElapsedSeconds,
			WidgetsProtected:  r.Stats.WidgetsProtected,
		},
		FromCache: r.FromCache,
	}
	for _, s := range r.ResearchSample {
		resp.ResearchSample = append(resp.ResearchSample, ResearchResult{
			Title:    s.Title,
			URL:      s.URL,
			Snippet:  s.Snippet,
			Provider: s.Provider,
		})
	}
	return resp
}
