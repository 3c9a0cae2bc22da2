package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Slot identifies one of the two independent brief variants stored per case
type Slot string

const (
	SlotBrief    Slot = "brief"
	SlotDetailed Slot = "detailed"
)

// ParseSlot validates a slot name coming from a request or flag
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotBrief, SlotDetailed:
		return Slot(s), nil
	default:
		return "", fmt.Errorf("unknown slot %q", s)
	}
}

// Field returns the document field that holds this slot
func (s Slot) Field() string {
	if s == SlotDetailed {
		return "detailedSummary"
	}
	return "briefSummary"
}

// Column returns the Postgres column that holds this slot
func (s Slot) Column() string {
	if s == SlotDetailed {
		return "detailed_summary"
	}
	return "brief_summary"
}

// Intent tells the orchestrator whether a stored verified summary may be reused
type Intent string

const (
	IntentReuseIfPresent  Intent = "reuse-if-present"
	IntentForceRegenerate Intent = "force-regenerate"
)

// ParseIntent accepts the canonical names plus the short forms used by the HTTP API
func ParseIntent(s string) (Intent, error) {
	switch s {
	case "", "reuse", string(IntentReuseIfPresent):
		return IntentReuseIfPresent, nil
	case "force", string(IntentForceRegenerate):
		return IntentForceRegenerate, nil
	default:
		return "", fmt.Errorf("unknown intent %q", s)
	}
}

// BriefSummary is a generated case brief. Values are never mutated in place;
// the With* helpers return copies.
type BriefSummary struct {
	RuleOfLaw string `json:"ruleOfLaw"`
	Facts     string `json:"facts"`
	Issue     string `json:"issue"`
	Holding   string `json:"holding"`
	Reasoning string `json:"reasoning"`
	Dissent   string `json:"dissent"`
	Verified  bool   `json:"verified"`

	// Revision is assigned by the store on every summary write.
	Revision    string     `json:"revision,omitempty"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
}

// BriefFields lists the six model-produced fields in prompt order
var BriefFields = []string{"ruleOfLaw", "facts", "issue", "holding", "reasoning", "dissent"}

// NewBriefSummary builds an unverified summary from extracted fields.
// Missing keys default to the empty string; unknown keys are ignored.
func NewBriefSummary(fields map[string]string) BriefSummary {
	return BriefSummary{
		RuleOfLaw: fields["ruleOfLaw"],
		Facts:     fields["facts"],
		Issue:     fields["issue"],
		Holding:   fields["holding"],
		Reasoning: fields["reasoning"],
		Dissent:   fields["dissent"],
	}
}

// Fields returns the six content fields keyed by their JSON names
func (b BriefSummary) Fields() map[string]string {
	return map[string]string{
		"ruleOfLaw": b.RuleOfLaw,
		"facts":     b.Facts,
		"issue":     b.Issue,
		"holding":   b.Holding,
		"reasoning": b.Reasoning,
		"dissent":   b.Dissent,
	}
}

// SameContent reports whether two summaries carry identical text
func (b BriefSummary) SameContent(o BriefSummary) bool {
	return b.RuleOfLaw == o.RuleOfLaw &&
		b.Facts == o.Facts &&
		b.Issue == o.Issue &&
		b.Holding == o.Holding &&
		b.Reasoning == o.Reasoning &&
		b.Dissent == o.Dissent
}

// WithVerified returns a copy with the verified flag set
func (b BriefSummary) WithVerified(v bool) BriefSummary {
	b.Verified = v
	return b
}

// WithRevision returns a copy stamped with a store revision and write time
func (b BriefSummary) WithRevision(rev string, at time.Time) BriefSummary {
	b.Revision = rev
	b.GeneratedAt = &at
	return b
}

// Value implements driver.Valuer for JSONB
func (b BriefSummary) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner for JSONB
func (b *BriefSummary) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported brief summary type %T", value)
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, b)
}

// Corrections holds metadata fixes suggested by the verifier
type Corrections struct {
	Title    string `json:"title,omitempty"`
	Citation string `json:"citation,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Empty reports whether no correction was suggested
func (c Corrections) Empty() bool {
	return c.Title == "" && c.Citation == "" && c.Date == ""
}

// VerificationVerdict is the verifier's judgement. It is never persisted directly.
type VerificationVerdict struct {
	Verified    bool         `json:"verified"`
	Explanation string       `json:"explanation,omitempty"`
	Corrections *Corrections `json:"corrections,omitempty"`
}
