// Package llm talks to the language models that judge page content.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a model answers with no content
var ErrEmptyResponse = errors.New("empty model response")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the model's answer
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single-turn prompt
type CompletionRequest struct {
	System string
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens overrides the configured limit
	MaxTokens int

	// Temperature overrides the configured temperature when non-nil
	Temperature *float32

	// JSON asks the model for a single JSON object
	JSON bool
}

// CompletionResponse is the model's answer
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "" (disabled).
	// "openai/<model>" selects provider and model together.
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI-compatible and Anthropic endpoints
	APIKey string

	// BaseURL for custom endpoints (self-hosted OpenAI-compatible servers, Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens   int
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "",
		Timeout:   60,
		MaxTokens: 800,
	}
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 800
}

func (c Config) temperature(req CompletionRequest) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}

func (c Config) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.Model
}
