// Package llm talks to the AI collaborator: natural-language-to-command
// translation and tier 3 safety verdicts. Supports Ollama (local) and
// OpenAI-compatible endpoints.
package llm

import (
	"context"
	"io"
	"net/http"
	"time"
)

// MaxErrorBodySize limits how much of an error response body is read, so
// a malformed endpoint cannot exhaust memory.
const MaxErrorBodySize = 1 * 1024 * 1024

// readLimitedBody reads up to maxBytes from r.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Provider is one chat-capable AI backend.
type Provider interface {
	// Chat sends a request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier.
	Name() string

	// Available reports whether the provider is configured and reachable.
	Available() bool
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	Temperature  float64   `json:"temperature,omitempty"`
}

// Message is one conversation message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse is the collaborator's reply.
type ChatResponse struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	TokensUsed       int           `json:"tokens_used,omitempty"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// ProviderConfig configures a provider.
type ProviderConfig struct {
	// Name identifies the provider (ollama, openai).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication. Ollama needs none.
	APIKey string

	// Model is the default model.
	Model string

	// MaxTokens default for responses. Replies here are a command line
	// or a verdict, so the default is small.
	MaxTokens int

	// Temperature default. Low: translation and verdicts should be
	// deterministic, not creative.
	Temperature float64

	// Timeout for API calls.
	Timeout time.Duration
}

// DefaultProviderConfig returns defaults for a provider.
func DefaultProviderConfig(name string) *ProviderConfig {
	switch name {
	case "openai":
		return &ProviderConfig{
			Name:        "openai",
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   256,
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		}
	default:
		return &ProviderConfig{
			Name:        "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			Model:       "llama3.2",
			MaxTokens:   256,
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		}
	}
}

// baseProvider carries the shared HTTP plumbing.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	if cfg == nil {
		cfg = DefaultProviderConfig(providerName)
	}

	defaults := DefaultProviderConfig(providerName)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = providerName

	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}
