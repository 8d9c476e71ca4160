// Package cohere 提供 Cohere LLM 供应商实现。
package cohere

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

const ProviderName = "cohere"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewEmbeddingProvider)
	llm.RegisterGenerationProvider(ProviderName, NewGenerationProvider)
}

// Config Cohere 供应商配置。
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
		BaseURL:    "https://api.cohere.com/v1",
		Model:      "embed-multilingual-v3.0",
		Dimension:  1024,
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
		return nil, fmt.Errorf("cohere: api_key 不能为空")
	}

	return cfg, nil
}

// Provider Cohere 供应商实现。
type Provider struct {
	config     *Config
	httpClient *http.Client
}

// NewEmbeddingProvider 从配置 map 创建 Cohere Embedding 供应商。
func NewEmbeddingProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg, err := configFromMap(configMap)
	if err != nil {
		return nil, err
	}
	return NewProviderWithConfig(cfg), nil
}

// NewGenerationProvider 从配置 map 创建 Cohere 生成供应商。
func NewGenerationProvider(configMap map[string]any) (llm.GenerationProvider, error) {
	cfg, err := configFromMap(configMap)
	if err != nil {
		return nil, err
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Cohere 供应商。
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

// RoleToken 返回 Cohere 协议中角色对应的标识符。
func (p *Provider) RoleToken(role llm.Role) string {
	switch role {
	case llm.RoleSystem:
		return "SYSTEM"
	case llm.RoleAssistant:
		return "CHATBOT"
	default:
		return "USER"
	}
}

// inputType 将嵌入用途映射为 Cohere 的 input_type。
func inputType(intent llm.Intent) string {
	if intent == llm.IntentQuery {
		return "search_query"
	}
	return "search_document"
}

// embedRequest Cohere embed API 请求体。
type embedRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

// embedResponse Cohere embed API 响应体。
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。文档和查询使用不同的嵌入模式。
func (p *Provider) Embed(ctx context.Context, texts []string, intent llm.Intent) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embedRequest{
		Model:     p.config.Model,
		Texts:     texts,
		InputType: inputType(intent),
	}

	var embedResp embedResponse
	if err := p.postJSON(ctx, "/embed", reqBody, &embedResp); err != nil {
		return nil, err
	}

	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d，实际 %d", len(texts), len(embedResp.Embeddings))
	}

	return embedResp.Embeddings, nil
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

// chatRequest Cohere chat API 请求体。
type chatRequest struct {
	Model       string        `json:"model"`
	Message     string        `json:"message"`
	ChatHistory []chatMessage `json:"chat_history,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// chatResponse Cohere chat API 响应体。
type chatResponse struct {
	Text string `json:"text"`
}

// Generate 根据提示和历史消息生成文本。历史消息映射为 chat_history。
func (p *Provider) Generate(ctx context.Context, prompt string, history []llm.Message) (string, error) {
	chatHistory := make([]chatMessage, 0, len(history))
	for _, msg := range history {
		chatHistory = append(chatHistory, chatMessage{
			Role:    p.RoleToken(msg.Role),
			Message: msg.Content,
		})
	}

	reqBody := chatRequest{
		Model:       p.config.Model,
		Message:     prompt,
		ChatHistory: chatHistory,
	}

	var chatResp chatResponse
	if err := p.postJSON(ctx, "/chat", reqBody, &chatResp); err != nil {
		return "", err
	}

	return chatResp.Text, nil
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
