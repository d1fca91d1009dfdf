// Package llm 管理 Eino ChatModel 客户端及一次性补全调用
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"smartcheck-api/internal/config"
	"smartcheck-api/internal/infrastructure/memstore"
)

// Credential 调用方提供的 LLM 凭证，覆盖配置中的提供商
type Credential struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Factory 管理多个 Eino ChatModel 客户端实例。
// 既支持按配置的提供商名获取，也支持按请求级凭证惰性创建。
type Factory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewFactory 创建 LLM 工厂
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
func (f *Factory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	return f.getOrCreate(ctx, "provider:"+name, providerCfg)
}

// GetWithCredential 按请求级凭证获取 ChatModel；凭证为空时退回默认提供商
func (f *Factory) GetWithCredential(ctx context.Context, cred *Credential) (model.BaseChatModel, error) {
	if cred == nil || cred.APIKey == "" {
		return f.Get(ctx, "")
	}

	providerCfg := config.ProviderConfig{
		APIKey:  cred.APIKey,
		BaseURL: cred.BaseURL,
		Model:   cred.Model,
	}
	// 缺省字段从默认提供商补齐
	if def, ok := f.config.Providers[f.config.DefaultProvider]; ok {
		if providerCfg.BaseURL == "" {
			providerCfg.BaseURL = def.BaseURL
		}
		if providerCfg.Model == "" {
			providerCfg.Model = def.Model
		}
		providerCfg.MaxTokens = def.MaxTokens
		providerCfg.Temperature = def.Temperature
		providerCfg.Timeout = def.Timeout
	}

	key := "cred:" + memstore.HashKey(providerCfg.BaseURL, providerCfg.APIKey, providerCfg.Model)
	return f.getOrCreate(ctx, key, providerCfg)
}

// getOrCreate 惰性创建并缓存 ChatModel
func (f *Factory) getOrCreate(ctx context.Context, key string, providerCfg config.ProviderConfig) (model.BaseChatModel, error) {
	f.mu.RLock()
	m, ok := f.models[key]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[key]; ok {
		return m, nil
	}

	maxTokens := providerCfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	timeout := providerCfg.Timeout
	if timeout <= 0 {
		timeout = 150 * time.Second
	}

	// 使用 Eino 的 OpenAI 适配器
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model: %w", err)
	}

	f.models[key] = chatModel
	return chatModel, nil
}

func ptrFloat32(f float32) *float32 {
	return &f
}
