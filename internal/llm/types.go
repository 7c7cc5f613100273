// Package llm provides interchangeable LLM backends behind a single
// completion capability, plus a failover registry with per-backend circuit
// breaking.
package llm

import (
	"context"
	"fmt"
)

// Provider identifies an LLM vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Message is one turn of a completion request.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Response is the completion result with token usage.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Client is the single capability every backend exposes.
type Client interface {
	// Complete sends the conversation and returns the model's reply.
	Complete(ctx context.Context, messages []Message) (*Response, error)
	// Provider returns the vendor identity.
	Provider() Provider
	// Model returns the configured model name.
	Model() string
	// Configured reports whether the backend has credentials and can be tried.
	Configured() bool
}

// NewClient constructs a vendor client by name. The apiKey may be empty, in
// which case the client reports unconfigured and the registry skips it.
func NewClient(name, model, apiKey string) (Client, error) {
	switch Provider(name) {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model), nil
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model), nil
	case ProviderGoogle:
		return NewGoogleClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
