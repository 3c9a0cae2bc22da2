package service

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"casebrief-backend/models"
)

const briefPromptText = `You are a legal research assistant preparing a case brief for a law student.

Case: {{.Title}}
{{- if .DecisionDate}}
Decided: {{.DecisionDate}}{{end}}
{{- if .Citation}}
Citation: {{.Citation}}{{end}}
{{- if .Jurisdiction}}
Court: {{.Jurisdiction}}{{end}}

Write a {{if .Detailed}}detailed{{else}}concise{{end}} brief of this case with exactly these fields:
- ruleOfLaw: the legal rule the case stands for
- facts: the relevant facts and procedural history
- issue: the legal question presented
- holding: the court's answer to the issue
- reasoning: why the court decided as it did
- dissent: the main dissenting argument, or an empty string if there was none
{{if .Detailed}}
Each field except dissent must contain at least {{.MinSentences}} complete sentences. Do not summarize in fragments or bullet points.
{{- else}}
Keep each field to one to three sentences.
{{- end}}

Respond with a single JSON object with the keys ruleOfLaw, facts, issue, holding, reasoning and dissent, all string values. Do not include any other text.`

const verifyPromptText = `You are checking a case brief for factual accuracy against the case's public record.

Case metadata:
Title: {{.Meta.Title}}
{{- if .Meta.DecisionDate}}
Decided: {{.Meta.DecisionDate}}{{end}}
{{- if .Meta.Citation}}
Citation: {{.Meta.Citation}}{{end}}
{{- if .Meta.Jurisdiction}}
Court: {{.Meta.Jurisdiction}}{{end}}

Brief:
Rule of law: {{.Summary.RuleOfLaw}}
Facts: {{.Summary.Facts}}
Issue: {{.Summary.Issue}}
Holding: {{.Summary.Holding}}
Reasoning: {{.Summary.Reasoning}}
Dissent: {{.Summary.Dissent}}

Decide whether the brief accurately describes this case. Mark it unverified if it describes a different case, misstates the holding, or invents facts.
If the title, citation or decision date in the metadata looks wrong, suggest a correction.

Respond with a single JSON object in exactly this format:
{"verified": true or false, "explanation": "<one or two sentences>", "corrections": {"title": "<optional>", "citation": "<optional>", "date": "<optional>"}}`

const detailedMinSentences = 4

var (
	briefPrompt  = template.Must(template.New("briefPrompt").Parse(briefPromptText))
	verifyPrompt = template.Must(template.New("verifyPrompt").Parse(verifyPromptText))
)

// buildBriefPrompt renders the generation prompt for a slot
func buildBriefPrompt(meta models.CaseMeta, slot models.Slot) (string, error) {
	data := struct {
		models.CaseMeta
		Detailed     bool
		MinSentences int
	}{
		CaseMeta:     sanitizeMeta(meta),
		Detailed:     slot == models.SlotDetailed,
		MinSentences: detailedMinSentences,
	}

	var buf bytes.Buffer
	if err := briefPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute brief prompt: %w", err)
	}
	return buf.String(), nil
}

// buildVerifyPrompt renders the verification prompt
func buildVerifyPrompt(summary models.BriefSummary, meta models.CaseMeta) (string, error) {
	data := struct {
		Meta    models.CaseMeta
		Summary models.BriefSummary
	}{
		Meta:    sanitizeMeta(meta),
		Summary: summary,
	}

	var buf bytes.Buffer
	if err := verifyPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute verify prompt: %w", err)
	}
	return buf.String(), nil
}

// sanitizeMeta collapses whitespace so metadata cannot inject extra prompt lines
func sanitizeMeta(m models.CaseMeta) models.CaseMeta {
	clean := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	return models.CaseMeta{
		Title:        clean(m.Title),
		DecisionDate: clean(m.DecisionDate),
		Citation:     clean(m.Citation),
		Jurisdiction: clean(m.Jurisdiction),
	}
}
