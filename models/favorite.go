package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite marks a case as saved by a user. UserID is the opaque identity
// supplied by the auth layer.
type Favorite struct {
	UserID    string    `json:"userId"`
	CaseID    uuid.UUID `json:"caseId"`
	CreatedAt time.Time `json:"createdAt"`
}
