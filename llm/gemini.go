package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient completes prompts with the Gemini API
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed completion client
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if model == "" {
		model = defaultGeminiModel
		slog.Warn("GEMINI_MODEL not set, using default", "model", model)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	slog.Info("Gemini client initialized", "model", model)
	return &GeminiClient{client: client, model: model}, nil
}

// Complete implements CompletionClient
func (g *GeminiClient) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(params.Temperature)
	if params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	var text strings.Builder
	for i, candidate := range resp.Candidates {
		if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
			slog.Warn("Gemini candidate finished early", "candidate", i, "reason", candidate.FinishReason.String())
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}

	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

// Close releases the underlying gRPC connection
func (g *GeminiClient) Close() error {
	return g.client.Close()
}
