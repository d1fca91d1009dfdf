// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Search        SearchConfig        `yaml:"search" mapstructure:"search"`
	Webflow       WebflowConfig       `yaml:"webflow" mapstructure:"webflow"`
	Fetch         FetchConfig         `yaml:"fetch" mapstructure:"fetch"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SearchConfig 搜索提供商与批处理配置
type SearchConfig struct {
	Tavily  TavilyConfig  `yaml:"tavily" mapstructure:"tavily"`
	SearXNG SearXNGConfig `yaml:"searxng" mapstructure:"searxng"`

	// PerQueryCount 每个查询请求的结果条数
	PerQueryCount int `yaml:"per_query_count" mapstructure:"per_query_count"`
	// BatchSize 并发批大小（限制上游瞬时压力）
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// BatchDelay 批与批之间的固定间隔
	BatchDelay time.Duration `yaml:"batch_delay" mapstructure:"batch_delay"`
}

// TavilyConfig Tavily 搜索配置
type TavilyConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearXNGConfig SearXNG 搜索配置
type SearXNGConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WebflowConfig 内容管理 API（条目存储）配置
type WebflowConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Token    string `yaml:"token" mapstructure:"token"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// FetchConfig 弹性出站请求配置
type FetchConfig struct {
	// Timeout 单次尝试超时
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// MaxAttempts 最大尝试次数（含首次）
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// BackoffBase 指数退避基准
	BackoffBase time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`
	// BackoffCap 退避上限
	BackoffCap time.Duration `yaml:"backoff_cap" mapstructure:"backoff_cap"`
}

// CacheConfig 内存缓存配置（三个独立 TTL 存储 + 周期清扫）
type CacheConfig struct {
	SearchTTL     time.Duration `yaml:"search_ttl" mapstructure:"search_ttl"`
	ListingTTL    time.Duration `yaml:"listing_ttl" mapstructure:"listing_ttl"`
	PipelineTTL   time.Duration `yaml:"pipeline_ttl" mapstructure:"pipeline_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// PipelineConfig 改写流水线策略配置
type PipelineConfig struct {
	// MaxQueries 查询生成上限
	MaxQueries int `yaml:"max_queries" mapstructure:"max_queries"`
	// RewriteTimeout 改写阶段 LLM 调用超时
	RewriteTimeout time.Duration `yaml:"rewrite_timeout" mapstructure:"rewrite_timeout"`
	// ContentPrefixRunes 查询生成提示词中内容前缀的最大长度
	ContentPrefixRunes int `yaml:"content_prefix_runes" mapstructure:"content_prefix_runes"`
	// ResearchSampleSize 返回给调用方的研究结果样本数
	ResearchSampleSize int `yaml:"research_sample_size" mapstructure:"research_sample_size"`
	// RejectOnDrift 标签数漂移超阈值时回退到原始内容（默认仅告警）
	RejectOnDrift bool `yaml:"reject_on_drift" mapstructure:"reject_on_drift"`
	// DriftRatio 标签数允许的相对漂移阈值
	DriftRatio float64 `yaml:"drift_ratio" mapstructure:"drift_ratio"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxRequests int           `yaml:"max_requests" mapstructure:"max_requests"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
