// Package llm 按提供商名称管理 Eino ChatModel
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"golang.org/x/sync/singleflight"

	"video-sentinel/internal/config"
)

// Registry 惰性创建并缓存各提供商的 ChatModel
type Registry struct {
	defaultName string
	providers   map[string]config.ProviderConfig

	mu     sync.RWMutex
	models map[string]model.BaseChatModel
	group  singleflight.Group
}

// NewRegistry 创建模型注册表
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		defaultName: cfg.LLM.DefaultProvider,
		providers:   cfg.LLM.Providers,
		models:      make(map[string]model.BaseChatModel),
	}
}

// Register 直接注册已构建的模型，覆盖同名配置
func (r *Registry) Register(name string, m model.BaseChatModel) {
	r.mu.Lock()
	r.models[name] = m
	r.mu.Unlock()
}

// Names 已配置的提供商名称
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get 按名称获取模型，name 为空时使用默认提供商
func (r *Registry) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = r.defaultName
	}

	r.mu.RLock()
	m, ok := r.models[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		m, ok := r.models[name]
		r.mu.RUnlock()
		if ok {
			return m, nil
		}

		p, ok := r.providers[name]
		if !ok {
			return nil, fmt.Errorf("llm provider %q is not configured", name)
		}
		m, err := openai.NewChatModel(ctx, chatModelConfig(p))
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model %q: %w", name, err)
		}

		r.mu.Lock()
		r.models[name] = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(model.BaseChatModel), nil
}

// Default 默认提供商的模型
func (r *Registry) Default(ctx context.Context) (model.BaseChatModel, error) {
	return r.Get(ctx, "")
}

// chatModelConfig 零值的温度与 max_tokens 交给服务端默认
func chatModelConfig(p config.ProviderConfig) *openai.ChatModelConfig {
	c := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Timeout: p.Timeout,
	}
	if p.Temperature > 0 {
		t := float32(p.Temperature)
		c.Temperature = &t
	}
	if p.MaxTokens > 0 {
		n := p.MaxTokens
		c.MaxTokens = &n
	}
	return c
}
