// Package openai 提供 OpenAI 兼容 API 的 LLM 供应商实现。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kart-io/ragserve/pkg/llm"
)

const ProviderName = "openai"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewEmbeddingProvider)
	llm.RegisterGenerationProvider(ProviderName, NewGenerationProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	APIKey     string        `json:"api_key" mapstructure:"api_key"`
	Model      string        `json:"model" mapstructure:"model"`
	Dimension  int           `json:"dimension" mapstructure:"dimension"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimension:  1536,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

func configFromMap(configMap map[string]any) (*Config, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := configMap["dimension"].(int); ok && v > 0 {
		cfg.Dimension = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key 不能为空")
	}

	return cfg, nil
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config     *Config
	httpClient *http.Client
}

// NewEmbeddingProvider 从配置 map 创建 OpenAI Embedding 供应商。
func NewEmbeddingProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg, err := configFromMap(configMap)
	if err != nil {
		return nil, err
	}
	return NewProviderWithConfig(cfg), nil
}

// NewGenerationProvider 从配置 map 创建 OpenAI 生成供应商。
func NewGenerationProvider(configMap map[string]any) (llm.GenerationProvider, error) {
	cfg, err := configFromMap(configMap)
	if err != nil {
		return nil, err
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// EmbeddingSize 返回嵌入向量维度。
func (p *Provider) EmbeddingSize() int {
	return p.config.Dimension
}

// RoleToken 返回 OpenAI 协议中角色对应的标识符。
func (p *Provider) RoleToken(role llm.Role) string {
	return string(role)
}

// embeddingRequest OpenAI embeddings API 请求体。
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse OpenAI embeddings API 响应体。
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed 为多个文本生成向量嵌入。OpenAI 不区分文档和查询，intent 被忽略。
func (p *Provider) Embed(ctx context.Context, texts []string, _ llm.Intent) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{
		Model: p.config.Model,
		Input: texts,
	}

	var embedResp embeddingResponse
	if err := p.postJSON(ctx, "/embeddings", reqBody, &embedResp); err != nil {
		return nil, err
	}

	if len(embedResp.Data) != len(texts) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d，实际 %d", len(texts), len(embedResp.Data))
	}

	// 按 index 排序回原始顺序
	embeddings := make([][]float32, len(texts))
	for _, d := range embedResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("响应 index 越界: %d", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string, intent llm.Intent) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text}, intent)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embeddings[0], nil
}

// chatCompletionRequest OpenAI chat completions API 请求体。
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse OpenAI chat completions API 响应体。
type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate 根据提示和历史消息生成文本。提示作为最后一条用户消息追加。
func (p *Provider) Generate(ctx context.Context, prompt string, history []llm.Message) (string, error) {
	messages := make([]chatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, chatMessage{
			Role:    p.RoleToken(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, chatMessage{
		Role:    p.RoleToken(llm.RoleUser),
		Content: prompt,
	})

	reqBody := chatCompletionRequest{
		Model:    p.config.Model,
		Messages: messages,
	}

	var chatResp chatCompletionResponse
	if err := p.postJSON(ctx, "/chat/completions", reqBody, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("未返回生成结果")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// postJSON 执行带认证和重试的 JSON POST 请求。
func (p *Provider) postJSON(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.doRequestWithRetry(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("请求失败，状态码 %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}

	return nil
}

// doRequestWithRetry 带重试的请求执行。
func (p *Provider) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	for i := 0; i <= p.config.MaxRetries; i++ {
		resp, err := p.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if i < p.config.MaxRetries {
			time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
		}
	}
	return nil, lastErr
}
