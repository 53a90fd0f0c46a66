package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleweave/taleweave/internal/config"
)

func TestNewClientProviders(t *testing.T) {
	ctx := context.Background()

	client, err := NewClient(ctx, config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)

	client, err = NewClient(ctx, config.LLMConfig{Provider: "Claude", Model: "claude-3-5-haiku-20241022", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, client)

	// Ollama rides the OpenAI-compatible endpoint.
	client, err = NewClient(ctx, config.LLMConfig{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{Provider: "cohere"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}
