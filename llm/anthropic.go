package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient completes prompts with the Anthropic messages API
type AnthropicClient struct {
	msgs  *anthropicsdk.MessageService
	model anthropicsdk.Model
}

// NewAnthropicClient creates an Anthropic-backed completion client
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = defaultAnthropicModel
		slog.Warn("ANTHROPIC_MODEL not set, using default", "model", model)
	}
	client := anthropicsdk.NewClient(option.WithAPIKey(apiKey))
	slog.Info("Initializing Anthropic client", "model", model)
	return &AnthropicClient{
		msgs:  &client.Messages,
		model: anthropicsdk.Model(model),
	}
}

// Complete implements CompletionClient
func (a *AnthropicClient) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	msg, err := a.msgs.New(ctx, anthropicsdk.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
		Temperature: param.NewOpt(float64(params.Temperature)),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}
