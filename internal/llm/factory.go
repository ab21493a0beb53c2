package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/claimprobe/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	name, modelName := ParseProvider(config.Provider)
	if modelName != "" && config.Model == "" {
		config.Model = modelName
	}

	switch name {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ParseProvider splits "openai/llama-3.3-70b-instruct" into the provider
// name and model. A bare provider name returns an empty model.
func ParseProvider(s string) (name, modelName string) {
	s = strings.TrimSpace(s)
	name, modelName, _ = strings.Cut(s, "/")
	return strings.ToLower(name), modelName
}

// ConfigFromModel converts model config sections to llm.Config
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:    llmCfg.Provider,
		Model:       llmCfg.Model,
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		Timeout:     llmCfg.Timeout,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
}
