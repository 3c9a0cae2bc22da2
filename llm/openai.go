package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient completes prompts with the OpenAI chat API
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed completion client
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
		slog.Warn("OPENAI_MODEL not set, using default", "model", model)
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Complete implements CompletionClient
func (o *OpenAIClient) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: params.Temperature,
	}
	if params.MaxTokens > 0 {
		req.MaxCompletionTokens = params.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonContentFilter {
		return "", fmt.Errorf("%w: content filter", ErrBlocked)
	}
	return resp.Choices[0].Message.Content, nil
}
