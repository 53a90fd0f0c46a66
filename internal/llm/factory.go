package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/taleweave/taleweave/internal/config"
)

// NewClient builds a Client from configuration. Ollama is served through
// the OpenAI-compatible endpoint, so it needs no client of its own.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	case "claude":
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)

	case "ollama":
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			// Ollama ignores the key but the client requires one.
			apiKey = "ollama"
		}
		return NewOpenAIClient(apiKey, cfg.Model, baseURL, cfg.MaxTokens), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
