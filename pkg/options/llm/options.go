// Package llmopts provides LLM provider configuration options.
package llmopts

import (
	"fmt"
	"time"

	"github.com/kart-io/ragserve/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions configures one LLM provider instance (embedding or generation).
type ProviderOptions struct {
	// Provider is the provider name (ollama, openai, cohere).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base address.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the API key, required by hosted providers.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model is the model identifier to use.
	Model string `json:"model" mapstructure:"model"`

	// Dimension is the embedding vector width (embedding providers only).
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Timeout bounds a single provider request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on transport errors.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewEmbeddingOptions creates default embedding provider options.
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Dimension:  768,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// NewGenerationOptions creates default generation provider options.
func NewGenerationOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "llama3.1:8b",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap converts the options to the map consumed by provider factories.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"model":       o.Model,
		"dimension":   o.Dimension,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// AddFlags adds flags to the flagset.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider name (ollama, openai, cohere).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model identifier.")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding vector width.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Max retries on transport errors.")
}

// Validate validates the options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("llm model is required"))
	}
	if o.Provider == "openai" || o.Provider == "cohere" {
		if o.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm api-key is required for provider %s", o.Provider))
		}
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm timeout must be positive"))
	}
	return errs
}
