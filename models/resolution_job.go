package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResolutionJobStatus represents the status of a background resolution
type ResolutionJobStatus string

const (
	JobStatusPending    ResolutionJobStatus = "pending"
	JobStatusInProgress ResolutionJobStatus = "in_progress"
	JobStatusCompleted  ResolutionJobStatus = "completed"
	JobStatusFailed     ResolutionJobStatus = "failed"
)

// ResolutionStep is one recorded step of a resolution run
type ResolutionStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "in_progress", "completed", "failed"
	Description string `json:"description,omitempty"`
}

// ResolutionSteps is a list of steps stored as JSONB
type ResolutionSteps []ResolutionStep

// Value implements driver.Valuer for JSONB
func (s ResolutionSteps) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *ResolutionSteps) Scan(value interface{}) error {
	if value == nil {
		*s = make(ResolutionSteps, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = make(ResolutionSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*s = make(ResolutionSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// ResolutionJob tracks an asynchronous orchestrator run for one case slot
type ResolutionJob struct {
	ID           uuid.UUID           `json:"id"`
	CaseID       uuid.UUID           `json:"caseId"`
	Slot         Slot                `json:"slot"`
	Intent       Intent              `json:"intent"`
	Status       ResolutionJobStatus `json:"status"`
	Outcome      string              `json:"outcome,omitempty"` // verified, exhausted, hard_error
	CurrentStep  *string             `json:"currentStep,omitempty"`
	Steps        ResolutionSteps     `json:"steps"`
	Attempts     int                 `json:"attempts"`
	Summary      *BriefSummary       `json:"summary,omitempty"`
	ErrorMessage *string             `json:"errorMessage,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
}
