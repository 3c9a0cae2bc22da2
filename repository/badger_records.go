package repository

import (
	"context"
	"errors"
	"net/url"
	"sort"

	"casebrief-backend/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// CreateJob stores a new resolution job
func (s *BadgerStore) CreateJob(ctx context.Context, job *models.ResolutionJob) error {
	t := now()
	job.ID = uuid.New()
	job.CreatedAt = t
	job.UpdatedAt = t
	if job.Steps == nil {
		job.Steps = make(models.ResolutionSteps, 0)
	}
	return s.update(ctx, "create job", func(txn *badger.Txn) error {
		return setJSON(txn, key(jobPrefix, job.ID.String()), job)
	})
}

// GetJob retrieves a resolution job by ID
func (s *BadgerStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ResolutionJob, error) {
	job := &models.ResolutionJob{}
	err := s.view(ctx, "get job", func(txn *badger.Txn) error {
		err := getJSON(txn, key(jobPrefix, id.String()), job)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound("job", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *BadgerStore) patchJob(ctx context.Context, op string, id uuid.UUID, mutate func(j *models.ResolutionJob)) error {
	return s.update(ctx, op, func(txn *badger.Txn) error {
		job := &models.ResolutionJob{}
		err := getJSON(txn, key(jobPrefix, id.String()), job)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound("job", id)
		}
		if err != nil {
			return err
		}
		mutate(job)
		job.UpdatedAt = now()
		return setJSON(txn, key(jobPrefix, id.String()), job)
	})
}

// UpdateJobProgress records the current step list
func (s *BadgerStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.ResolutionSteps, attempts int) error {
	return s.patchJob(ctx, "update job", id, func(j *models.ResolutionJob) {
		j.Status = models.JobStatusInProgress
		j.CurrentStep = &currentStep
		j.Steps = steps
		j.Attempts = attempts
	})
}

// CompleteJob marks a job completed with its terminal outcome
func (s *BadgerStore) CompleteJob(ctx context.Context, id uuid.UUID, outcome string, summary *models.BriefSummary, attempts int) error {
	return s.patchJob(ctx, "complete job", id, func(j *models.ResolutionJob) {
		t := now()
		j.Status = models.JobStatusCompleted
		j.Outcome = outcome
		j.Summary = summary
		j.Attempts = attempts
		j.CompletedAt = &t
	})
}

// FailJob marks a job failed
func (s *BadgerStore) FailJob(ctx context.Context, id uuid.UUID, outcome, errorMessage string, attempts int) error {
	return s.patchJob(ctx, "fail job", id, func(j *models.ResolutionJob) {
		t := now()
		j.Status = models.JobStatusFailed
		j.Outcome = outcome
		j.ErrorMessage = &errorMessage
		j.Attempts = attempts
		j.CompletedAt = &t
	})
}

func favoriteKey(userID string, caseID uuid.UUID) []byte {
	return key(favPrefix, url.PathEscape(userID), caseID.String())
}

// AddFavorite saves a case for a user. Adding twice is a no-op.
func (s *BadgerStore) AddFavorite(ctx context.Context, userID string, caseID uuid.UUID) error {
	return s.update(ctx, "add favorite", func(txn *badger.Txn) error {
		if _, err := loadCase(txn, caseID); err != nil {
			return err
		}
		k := favoriteKey(userID, caseID)
		if _, err := txn.Get(k); err == nil {
			return nil
		}
		return setJSON(txn, k, &models.Favorite{UserID: userID, CaseID: caseID, CreatedAt: now()})
	})
}

// RemoveFavorite deletes a saved case. Removing a missing favorite is a no-op.
func (s *BadgerStore) RemoveFavorite(ctx context.Context, userID string, caseID uuid.UUID) error {
	return s.update(ctx, "remove favorite", func(txn *badger.Txn) error {
		return txn.Delete(favoriteKey(userID, caseID))
	})
}

// ListFavorites returns a user's favorites, newest first
func (s *BadgerStore) ListFavorites(ctx context.Context, userID string) ([]*models.Favorite, error) {
	prefix := append(key(favPrefix, url.PathEscape(userID)), '/')
	var favorites []*models.Favorite
	err := s.view(ctx, "list favorites", func(txn *badger.Txn) error {
		return iteratePrefix(txn, prefix, func(val []byte) error {
			f := &models.Favorite{}
			if err := unmarshal(val, f); err != nil {
				return err
			}
			favorites = append(favorites, f)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(favorites, func(i, j int) bool {
		return favorites[i].CreatedAt.After(favorites[j].CreatedAt)
	})
	return favorites, nil
}

// CreateFile stores document metadata for an existing case
func (s *BadgerStore) CreateFile(ctx context.Context, file *models.File) error {
	file.ID = uuid.New()
	file.CreatedAt = now()
	return s.update(ctx, "create file", func(txn *badger.Txn) error {
		if _, err := loadCase(txn, file.CaseID); err != nil {
			return err
		}
		return setJSON(txn, key(filePrefix, file.ID.String()), file)
	})
}

// GetFile retrieves a file by ID
func (s *BadgerStore) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	file := &models.File{}
	err := s.view(ctx, "get file", func(txn *badger.Txn) error {
		err := getJSON(txn, key(filePrefix, id.String()), file)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound("file", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ListFilesByCase retrieves all documents uploaded for a case
func (s *BadgerStore) ListFilesByCase(ctx context.Context, caseID uuid.UUID) ([]*models.File, error) {
	var files []*models.File
	err := s.view(ctx, "list files", func(txn *badger.Txn) error {
		return iteratePrefix(txn, filePrefix, func(val []byte) error {
			f := &models.File{}
			if err := unmarshal(val, f); err != nil {
				return err
			}
			if f.CaseID == caseID {
				files = append(files, f)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

func iteratePrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
