package models

import (
	"time"

	"github.com/google/uuid"
)

// File is an uploaded case document (opinion text, PDF, ...)
type File struct {
	ID          uuid.UUID `json:"id"`
	CaseID      uuid.UUID `json:"caseId"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storagePath"`
	CreatedAt   time.Time `json:"createdAt"`
}
