package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casebrief-backend/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStaleRevision means the slot no longer holds the summary the caller judged.
	ErrStaleRevision = errors.New("summary revision changed")
)

// CaseStore is the persistence gateway for case documents. It is the only
// writer of CaseRecord; every write is scoped to one field or one slot.
type CaseStore interface {
	GetCase(ctx context.Context, id uuid.UUID) (*models.CaseRecord, error)
	CreateCase(ctx context.Context, fields models.CaseFields) (*models.CaseRecord, error)
	ListCases(ctx context.Context, limit, offset int) ([]*models.CaseRecord, error)
	// ListUnverified returns cases whose slot holds a summary with verified=false.
	ListUnverified(ctx context.Context, slot models.Slot, limit int) ([]*models.CaseRecord, error)

	// PatchSummary replaces one slot with summary, forcing verified=false and
	// stamping a fresh revision. The stored value is returned.
	PatchSummary(ctx context.Context, id uuid.UUID, slot models.Slot, summary models.BriefSummary) (models.BriefSummary, error)
	// PatchVerified sets only the verified flag of a slot, and only if the slot
	// still holds revision.
	PatchVerified(ctx context.Context, id uuid.UUID, slot models.Slot, revision string, verified bool) error
	PatchMetadataField(ctx context.Context, id uuid.UUID, field models.MetadataField, value string) error
}

// JobStore persists resolution jobs
type JobStore interface {
	CreateJob(ctx context.Context, job *models.ResolutionJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.ResolutionJob, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.ResolutionSteps, attempts int) error
	CompleteJob(ctx context.Context, id uuid.UUID, outcome string, summary *models.BriefSummary, attempts int) error
	FailJob(ctx context.Context, id uuid.UUID, outcome, errorMessage string, attempts int) error
}

// FavoriteStore persists per-user saved cases
type FavoriteStore interface {
	AddFavorite(ctx context.Context, userID string, caseID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID string, caseID uuid.UUID) error
	ListFavorites(ctx context.Context, userID string) ([]*models.Favorite, error)
}

// FileStore persists uploaded case document metadata
type FileStore interface {
	CreateFile(ctx context.Context, file *models.File) error
	GetFile(ctx context.Context, id uuid.UUID) (*models.File, error)
	ListFilesByCase(ctx context.Context, caseID uuid.UUID) ([]*models.File, error)
}

// Store bundles every gateway a backend provides
type Store interface {
	CaseStore
	JobStore
	FavoriteStore
	FileStore
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}

// NewRevision returns an opaque summary revision
func NewRevision() string {
	return uuid.NewString()
}

// prepareSummary stamps a summary for storage: unverified, new revision.
func prepareSummary(s models.BriefSummary) models.BriefSummary {
	return s.WithVerified(false).WithRevision(NewRevision(), now())
}

var now = func() time.Time { return time.Now().UTC() }

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*BadgerStore)(nil)
)

// Open selects a backend: "postgres" uses connString, anything else opens
// Badger at badgerPath (in-memory when empty)
func Open(ctx context.Context, storeType, connString, badgerPath string) (Store, error) {
	if storeType == "postgres" {
		pg, err := OpenPostgres(ctx, connString)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	b, err := OpenBadger(badgerPath)
	if err != nil {
		return nil, err
	}
	return b, nil
}
