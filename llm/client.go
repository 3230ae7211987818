// LLMClient - Simple wrapper around providers.

package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyCompletion is returned when a provider answers without content.
var ErrEmptyCompletion = errors.New("empty completion")

// Client wraps a Provider with a simple interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Chat sends a chat completion request and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	content, _, err := c.Complete(ctx, messages)
	return content, err
}

// Complete sends a chat completion request and returns content with token usage.
// A completion without content is an error, not an empty answer. Whitespace
// is returned as is and left to the caller to judge.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, *TokenUsage, error) {
	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", nil, err
	}
	if response.Content == "" {
		return "", response.Usage, fmt.Errorf("%s/%s: %w", c.provider.Name(), c.provider.Model(), ErrEmptyCompletion)
	}
	return response.Content, response.Usage, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
