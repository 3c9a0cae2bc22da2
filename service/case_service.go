package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casebrief-backend/models"
	"casebrief-backend/repository"

	"github.com/google/uuid"
)

// CaseService handles case records and per-user favorites
type CaseService struct {
	cases     repository.CaseStore
	favorites repository.FavoriteStore
}

// CaseServiceOption is a functional option for CaseService
type CaseServiceOption func(*CaseService)

// WithCaseStore sets the case gateway
func WithCaseStore(store repository.CaseStore) CaseServiceOption {
	return func(s *CaseService) {
		s.cases = store
	}
}

// WithFavoriteStore sets the favorites gateway
func WithFavoriteStore(store repository.FavoriteStore) CaseServiceOption {
	return func(s *CaseService) {
		s.favorites = store
	}
}

// NewCaseService creates a new case service
func NewCaseService(opts ...CaseServiceOption) *CaseService {
	s := &CaseService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CreateCase stores a new case. Summaries start empty.
func (s *CaseService) CreateCase(ctx context.Context, fields models.CaseFields) (*models.CaseRecord, error) {
	if s.cases == nil {
		return nil, errors.New("case store not set")
	}
	fields.Title = strings.TrimSpace(fields.Title)
	if fields.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return s.cases.CreateCase(ctx, fields)
}

// GetCase retrieves a case by ID
func (s *CaseService) GetCase(ctx context.Context, id uuid.UUID) (*models.CaseRecord, error) {
	if s.cases == nil {
		return nil, errors.New("case store not set")
	}
	return s.cases.GetCase(ctx, id)
}

// ListCasesRequest represents a request to list cases
type ListCasesRequest struct {
	Limit  int
	Offset int
}

// ListCases returns a page of cases, newest first
func (s *CaseService) ListCases(ctx context.Context, req ListCasesRequest) ([]*models.CaseRecord, error) {
	if s.cases == nil {
		return nil, errors.New("case store not set")
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}
	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.cases.ListCases(ctx, req.Limit, req.Offset)
}

// UpdateMetadata patches a single metadata field and returns the updated case
func (s *CaseService) UpdateMetadata(ctx context.Context, id uuid.UUID, field models.MetadataField, value string) (*models.CaseRecord, error) {
	if s.cases == nil {
		return nil, errors.New("case store not set")
	}
	if !field.Valid() {
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, field)
	}
	if field == models.FieldTitle && strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: title cannot be blank", ErrInvalidInput)
	}

	if err := s.cases.PatchMetadataField(ctx, id, field, value); err != nil {
		return nil, err
	}
	return s.cases.GetCase(ctx, id)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return nil
}

// AddFavorite saves a case for a user. Adding twice is a no-op.
func (s *CaseService) AddFavorite(ctx context.Context, userID string, caseID uuid.UUID) error {
	if s.favorites == nil {
		return errors.New("favorite store not set")
	}
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.favorites.AddFavorite(ctx, userID, caseID)
}

// RemoveFavorite drops a saved case
func (s *CaseService) RemoveFavorite(ctx context.Context, userID string, caseID uuid.UUID) error {
	if s.favorites == nil {
		return errors.New("favorite store not set")
	}
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.favorites.RemoveFavorite(ctx, userID, caseID)
}

// ListFavorites returns the cases a user saved. Favorites whose case has
// since disappeared are skipped.
func (s *CaseService) ListFavorites(ctx context.Context, userID string) ([]*models.CaseRecord, error) {
	if s.favorites == nil || s.cases == nil {
		return nil, errors.New("favorite store not set")
	}
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	favs, err := s.favorites.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.CaseRecord, 0, len(favs))
	for _, f := range favs {
		c, err := s.cases.GetCase(ctx, f.CaseID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
