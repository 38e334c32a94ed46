// Package llm provides chat-completion clients for the supported
// model providers. All providers speak the OpenAI-compatible
// /chat/completions API; they differ only in base URL and key.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client is a stateless chat-completion client.
type Client interface {
	// Name returns the provider identifier (e.g. "openai", "groq").
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// Complete sends one prompt and returns the model's text reply.
	Complete(ctx context.Context, prompt string) (string, Usage, error)
}

// ErrRateLimited indicates the provider rejected the call for quota
// reasons. Callers treat it as a degraded analyzer, not a crash.
var ErrRateLimited = errors.New("provider rate limit exceeded")

// Options configures a provider client.
type Options struct {
	Provider string // "openai" or "groq"
	Model    string
	APIKey   string
	BaseURL  string // empty = provider default
}

// New creates a client for the configured provider.
func New(opts Options) (Client, error) {
	switch opts.Provider {
	case "openai":
		return newChatClient(opts, openaiDefaultBaseURL), nil
	case "groq":
		return newChatClient(opts, groqDefaultBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", opts.Provider)
	}
}
