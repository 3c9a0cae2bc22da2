package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"casebrief-backend/llm"
	"casebrief-backend/models"
	"casebrief-backend/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("casebrief-backend/service")

// CompletionSettings bound every completion call made by the pipeline
type CompletionSettings struct {
	Temperature       float32
	BriefMaxTokens    int
	DetailedMaxTokens int
	VerifyMaxTokens   int
	Timeout           time.Duration
}

// DefaultCompletionSettings matches the documented pipeline defaults
func DefaultCompletionSettings() CompletionSettings {
	return CompletionSettings{
		Temperature:       0.7,
		BriefMaxTokens:    1024,
		DetailedMaxTokens: 3072,
		VerifyMaxTokens:   512,
		Timeout:           60 * time.Second,
	}
}

// complete runs one bounded completion call and records it
func complete(ctx context.Context, client llm.CompletionClient, purpose, prompt string, params llm.Params, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	raw, err := client.Complete(ctx, prompt, params)
	observability.RecordCompletion(purpose, err)
	return raw, err
}

// BriefGenerator turns case metadata into a BriefSummary. It never persists.
type BriefGenerator struct {
	client   llm.CompletionClient
	settings CompletionSettings
}

// NewBriefGenerator creates a generator on top of a completion client
func NewBriefGenerator(client llm.CompletionClient, settings CompletionSettings) *BriefGenerator {
	return &BriefGenerator{client: client, settings: settings}
}

// Generate asks the model for a brief of the given slot's detail level.
// Missing fields default to "".
func (g *BriefGenerator) Generate(ctx context.Context, meta models.CaseMeta, slot models.Slot) (models.BriefSummary, error) {
	ctx, span := tracer.Start(ctx, "BriefGenerator.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("slot", string(slot)))

	prompt, err := buildBriefPrompt(meta, slot)
	if err != nil {
		return models.BriefSummary{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	maxTokens := g.settings.BriefMaxTokens
	if slot == models.SlotDetailed {
		maxTokens = g.settings.DetailedMaxTokens
	}

	raw, err := complete(ctx, g.client, "generate", prompt, llm.Params{
		Temperature: g.settings.Temperature,
		MaxTokens:   maxTokens,
	}, g.settings.Timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return models.BriefSummary{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	obj, err := ExtractObject(raw)
	if err != nil {
		slog.Warn("Generated brief was not a JSON object", "title", meta.Title, "slot", slot, "len", len(raw))
		span.SetStatus(codes.Error, "unparseable output")
		return models.BriefSummary{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	return models.NewBriefSummary(StringFields(obj, models.BriefFields)), nil
}
