package ai

import (
	"fmt"
	"strings"
)

// ProviderConfig selects and configures a model provider.
type ProviderConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// NewEmbedder builds the Embedder for cfg.Provider (openai, ollama, gemini).
func NewEmbedder(cfg ProviderConfig) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "openai"
	}
	switch provider {
	case "openai", "openai-compat", "openai_compat":
		return NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions), nil
	case "ollama":
		if cfg.Dimensions <= 0 {
			return nil, fmt.Errorf("embedding dim required for ollama")
		}
		return NewOllamaEmbedder(NewOllamaClient(cfg.BaseURL), cfg.Model, cfg.Dimensions), nil
	case "gemini":
		gemini, err := NewGeminiClientWithBaseURL(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return NewGeminiEmbedder(gemini, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}

// NewGenerator builds the ChatGenerator for cfg.Provider. An empty provider
// returns nil so callers can run without generation.
func NewGenerator(cfg ProviderConfig) (ChatGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "none":
		return nil, nil
	case "openai", "openai-compat", "openai_compat":
		baseURL := cfg.BaseURL
		if strings.TrimSpace(baseURL) == "" {
			baseURL = defaultOpenAIBaseURL
		}
		return NewOpenAICompatGenerator(baseURL, cfg.APIKey, cfg.Model), nil
	case "ollama":
		return NewOllamaGenerator(NewOllamaClient(cfg.BaseURL), cfg.Model), nil
	case "gemini":
		gemini, err := NewGeminiClientWithBaseURL(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return NewGeminiGenerator(gemini, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", provider)
	}
}
