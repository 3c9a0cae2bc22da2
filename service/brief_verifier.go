package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"casebrief-backend/llm"
	"casebrief-backend/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BriefVerifier asks the model to judge a summary against case metadata.
// It fails closed: any error yields an unverified verdict.
type BriefVerifier struct {
	client   llm.CompletionClient
	settings CompletionSettings
}

// NewBriefVerifier creates a verifier on top of a completion client
func NewBriefVerifier(client llm.CompletionClient, settings CompletionSettings) *BriefVerifier {
	return &BriefVerifier{client: client, settings: settings}
}

// Verify returns the model's verdict. On error the returned verdict is still
// usable and always has Verified=false.
func (v *BriefVerifier) Verify(ctx context.Context, summary models.BriefSummary, meta models.CaseMeta) (models.VerificationVerdict, error) {
	ctx, span := tracer.Start(ctx, "BriefVerifier.Verify")
	defer span.End()

	prompt, err := buildVerifyPrompt(summary, meta)
	if err != nil {
		return unverified("verification prompt could not be built"), fmt.Errorf("%w: %w", ErrVerificationFailure, err)
	}

	raw, err := complete(ctx, v.client, "verify", prompt, llm.Params{
		Temperature: v.settings.Temperature,
		MaxTokens:   v.settings.VerifyMaxTokens,
	}, v.settings.Timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return unverified("verification service unavailable"), fmt.Errorf("%w: %w", ErrVerificationFailure, err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		slog.Warn("Verifier output unparseable, treating as unverified", "title", meta.Title, "error", err)
		span.SetStatus(codes.Error, "unparseable verdict")
		return unverified("verifier response could not be parsed"), fmt.Errorf("%w: %w", ErrVerificationFailure, err)
	}

	span.SetAttributes(attribute.Bool("verified", verdict.Verified))
	return verdict, nil
}

func unverified(explanation string) models.VerificationVerdict {
	return models.VerificationVerdict{Verified: false, Explanation: explanation}
}

// parseVerdict requires a boolean "verified" key; only a literal true verifies
func parseVerdict(raw string) (models.VerificationVerdict, error) {
	obj, err := ExtractObject(raw)
	if err != nil {
		return models.VerificationVerdict{}, err
	}

	rawVerified, ok := obj["verified"]
	if !ok {
		return models.VerificationVerdict{}, fmt.Errorf("%w: missing verified key", ErrUnparseableOutput)
	}
	var verified bool
	if err := json.Unmarshal(rawVerified, &verified); err != nil {
		return models.VerificationVerdict{}, fmt.Errorf("%w: verified is not a boolean", ErrUnparseableOutput)
	}

	verdict := models.VerificationVerdict{Verified: verified}

	explanation := textValue(obj["explanation"])
	if explanation == "" {
		explanation = textValue(obj["reason"])
	}
	verdict.Explanation = explanation

	if rawCorr, ok := obj["corrections"]; ok {
		if corr, ok := parseCorrections(rawCorr); ok {
			verdict.Corrections = corr
		}
	}
	return verdict, nil
}

func parseCorrections(raw json.RawMessage) (*models.Corrections, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	fields := StringFields(obj, []string{"title", "citation", "date"})
	c := &models.Corrections{
		Title:    strings.TrimSpace(fields["title"]),
		Citation: strings.TrimSpace(fields["citation"]),
		Date:     strings.TrimSpace(fields["date"]),
	}
	if c.Empty() {
		return nil, false
	}
	return c, true
}
