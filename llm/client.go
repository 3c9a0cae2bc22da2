package llm

import (
	"context"
	"errors"
	"fmt"
)

// Params are the per-call generation settings
type Params struct {
	Temperature float32
	MaxTokens   int
}

// CompletionClient sends a prompt to a text-generation backend and returns raw text.
// Implementations hold no per-call state and are safe for concurrent use.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}

var (
	ErrEmptyResponse  = errors.New("completion returned empty content")
	ErrBlocked        = errors.New("completion blocked by provider")
	ErrUnknownBackend = errors.New("unknown completion backend")
	ErrMissingAPIKey  = errors.New("completion api key not set")
)

// Backend names accepted by New
const (
	BackendGemini    = "gemini"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

// Config selects and configures a completion backend
type Config struct {
	Backend string
	APIKey  string
	Model   string
}

// New builds the completion client named by cfg.Backend
func New(ctx context.Context, cfg Config) (CompletionClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for backend %q", ErrMissingAPIKey, cfg.Backend)
	}
	switch cfg.Backend {
	case BackendGemini, "":
		g, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return g, nil
	case BackendOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model), nil
	case BackendAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// CompletionFunc adapts a plain function to CompletionClient
type CompletionFunc func(ctx context.Context, prompt string, params Params) (string, error)

// Complete calls f
func (f CompletionFunc) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	return f(ctx, prompt, params)
}
