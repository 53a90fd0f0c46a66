package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

// ClaudeClient drives Anthropic models. The relevance check defaults to a
// Haiku-class model: classification is cheap work and the narration model
// would be wasted on it.
type ClaudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewClaudeClient builds a client for the given model. An empty baseURL
// means the official API.
func NewClaudeClient(apiKey, model, baseURL string, maxTokens int) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Generate sends a single user prompt and returns the reply text.
// Temperature is pinned to zero so classification stays deterministic.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0)
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return "", fmt.Errorf("no response content")
	}
	return *resp.Content[0].Text, nil
}
