package searchprov

import (
	"smartcheck-api/internal/config"
	"smartcheck-api/internal/infrastructure/httpx"
)

// NewSearchers 根据配置创建已启用的搜索提供商集合，按名称索引
func NewSearchers(cfg *config.SearchConfig, fetch *httpx.Client) map[string]Searcher {
	searchers := make(map[string]Searcher)

	if cfg.Tavily.Enabled && cfg.Tavily.APIKey != "" {
		c := NewTavilyClient(cfg.Tavily.APIKey, cfg.Tavily.BaseURL, fetch)
		searchers[c.Name()] = c
	}
	if cfg.SearXNG.Enabled && cfg.SearXNG.BaseURL != "" {
		c := NewSearXNGClient(cfg.SearXNG.BaseURL, fetch)
		searchers[c.Name()] = c
	}

	return searchers
}
