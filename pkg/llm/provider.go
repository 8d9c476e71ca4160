// Package llm 提供统一的 LLM 供应商抽象层。
// 支持 Embedding 和文本生成使用不同供应商的模型。
package llm

import (
	"context"
	"fmt"
	"sync"
)

// Intent 标识嵌入文本的用途。部分供应商（如 Cohere）对文档和查询
// 使用不同的嵌入模式，其余供应商可忽略该参数。
type Intent string

const (
	// IntentDocument 表示被索引的文档文本。
	IntentDocument Intent = "document"
	// IntentQuery 表示检索查询文本。
	IntentQuery Intent = "query"
)

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入，返回与输入等长的向量切片。
	Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string, intent Intent) ([]float32, error)

	// EmbeddingSize 返回嵌入向量维度。
	EmbeddingSize() int

	// Name 返回供应商名称。
	Name() string
}

// GenerationProvider 定义文本生成供应商接口。
type GenerationProvider interface {
	// Generate 根据提示和历史消息生成文本。
	Generate(ctx context.Context, prompt string, history []Message) (string, error)

	// RoleToken 返回供应商协议中角色对应的标识符。
	RoleToken(role Role) string

	// Name 返回供应商名称。
	Name() string
}

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// GenerationProviderFactory 生成供应商工厂函数类型。
type GenerationProviderFactory func(config map[string]any) (GenerationProvider, error)

// registry 供应商注册表。
var registry = &providerRegistry{
	embeddingProviders:  make(map[string]EmbeddingProviderFactory),
	generationProviders: make(map[string]GenerationProviderFactory),
}

type providerRegistry struct {
	mu                  sync.RWMutex
	embeddingProviders  map[string]EmbeddingProviderFactory
	generationProviders map[string]GenerationProviderFactory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// RegisterGenerationProvider 注册生成供应商工厂。
func RegisterGenerationProvider(name string, factory GenerationProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.generationProviders[name] = factory
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.embeddingProviders[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}

	return factory(config)
}

// NewGenerationProvider 根据名称创建生成供应商实例。
func NewGenerationProvider(name string, config map[string]any) (GenerationProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.generationProviders[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown generation provider: %s", name)
	}

	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string

	for name := range registry.embeddingProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.generationProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return names
}
