package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseRecord is the shared document for one legal case
type CaseRecord struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	DecisionDate string    `json:"decisionDate"`
	Citation     string    `json:"citation"`
	Jurisdiction string    `json:"jurisdiction"`
	Content      string    `json:"content"`

	// Independent slots; verifying or regenerating one never touches the other.
	BriefSummary    *BriefSummary `json:"briefSummary,omitempty"`
	DetailedSummary *BriefSummary `json:"detailedSummary,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the summary stored in a slot, or nil
func (c *CaseRecord) Summary(slot Slot) *BriefSummary {
	if slot == SlotDetailed {
		return c.DetailedSummary
	}
	return c.BriefSummary
}

// SetSummary replaces the summary held in a slot
func (c *CaseRecord) SetSummary(slot Slot, s *BriefSummary) {
	if slot == SlotDetailed {
		c.DetailedSummary = s
		return
	}
	c.BriefSummary = s
}

// Meta returns the public metadata used by the generator and verifier
func (c *CaseRecord) Meta() CaseMeta {
	return CaseMeta{
		Title:        c.Title,
		DecisionDate: c.DecisionDate,
		Citation:     c.Citation,
		Jurisdiction: c.Jurisdiction,
	}
}

// CaseMeta is the case metadata that prompts are built from
type CaseMeta struct {
	Title        string `json:"title"`
	DecisionDate string `json:"decisionDate,omitempty"`
	Citation     string `json:"citation,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// CaseFields are the caller-supplied fields for a new case
type CaseFields struct {
	Title        string `json:"title" yaml:"title" binding:"required"`
	DecisionDate string `json:"decisionDate" yaml:"decisionDate"`
	Citation     string `json:"citation" yaml:"citation"`
	Jurisdiction string `json:"jurisdiction" yaml:"jurisdiction"`
	Content      string `json:"content" yaml:"content"`
}

// MetadataField names a case field that may be patched outside the brief pipeline
type MetadataField string

const (
	FieldTitle        MetadataField = "title"
	FieldDecisionDate MetadataField = "decisionDate"
	FieldCitation     MetadataField = "citation"
	FieldJurisdiction MetadataField = "jurisdiction"
	FieldContent      MetadataField = "content"
)

// Column returns the Postgres column for a metadata field, or "" if unknown
func (f MetadataField) Column() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldDecisionDate:
		return "decision_date"
	case FieldCitation:
		return "citation"
	case FieldJurisdiction:
		return "jurisdiction"
	case FieldContent:
		return "content"
	default:
		return ""
	}
}

// Valid reports whether f is a patchable metadata field
func (f MetadataField) Valid() bool {
	return f.Column() != ""
}

// Apply writes value into the matching field of c
func (f MetadataField) Apply(c *CaseRecord, value string) {
	switch f {
	case FieldTitle:
		c.Title = value
	case FieldDecisionDate:
		c.DecisionDate = value
	case FieldCitation:
		c.Citation = value
	case FieldJurisdiction:
		c.Jurisdiction = value
	case FieldContent:
		c.Content = value
	}
}
