package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"casebrief-backend/models"
	"casebrief-backend/repository"

	"github.com/google/uuid"
)

// ResolutionJobService runs brief resolutions in the background and records
// their progress as polling-friendly jobs
type ResolutionJobService struct {
	jobs   repository.JobStore
	cases  repository.CaseStore
	briefs *BriefService
	wg     sync.WaitGroup
}

// ResolutionJobServiceOption is a functional option for ResolutionJobService
type ResolutionJobServiceOption func(*ResolutionJobService)

// JobsWithJobStore sets the job gateway
func JobsWithJobStore(store repository.JobStore) ResolutionJobServiceOption {
	return func(s *ResolutionJobService) {
		s.jobs = store
	}
}

// JobsWithCaseStore sets the case gateway used to validate requests
func JobsWithCaseStore(store repository.CaseStore) ResolutionJobServiceOption {
	return func(s *ResolutionJobService) {
		s.cases = store
	}
}

// JobsWithBriefService sets the orchestrator that jobs run
func JobsWithBriefService(briefs *BriefService) ResolutionJobServiceOption {
	return func(s *ResolutionJobService) {
		s.briefs = briefs
	}
}

// NewResolutionJobService creates a new resolution job service
func NewResolutionJobService(opts ...ResolutionJobServiceOption) *ResolutionJobService {
	s := &ResolutionJobService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartResolutionRequest represents a request to resolve a slot asynchronously
type StartResolutionRequest struct {
	CaseID uuid.UUID
	Slot   models.Slot
	Intent models.Intent
}

// StartResolutionResult carries the id to poll
type StartResolutionResult struct {
	JobID uuid.UUID
}

// StartResolution creates a job and returns immediately; the resolution runs
// on its own goroutine, detached from ctx
func (s *ResolutionJobService) StartResolution(ctx context.Context, req StartResolutionRequest) (*StartResolutionResult, error) {
	if s.jobs == nil {
		return nil, errors.New("job store not set")
	}
	if s.cases == nil {
		return nil, errors.New("case store not set")
	}
	if s.briefs == nil {
		return nil, errors.New("brief service not set")
	}
	if _, err := models.ParseSlot(string(req.Slot)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	intent, err := models.ParseIntent(string(req.Intent))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	req.Intent = intent

	if _, err := s.cases.GetCase(ctx, req.CaseID); err != nil {
		return nil, err
	}

	job := &models.ResolutionJob{
		CaseID: req.CaseID,
		Slot:   req.Slot,
		Intent: req.Intent,
		Status: models.JobStatusPending,
		Steps:  make(models.ResolutionSteps, 0),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	jobCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.ProcessResolution(jobCtx, job.ID, req); err != nil {
			slog.Warn("Resolution job failed", "job_id", job.ID, "error", err)
		}
	}()

	return &StartResolutionResult{JobID: job.ID}, nil
}

// Wait blocks until every started job has finished
func (s *ResolutionJobService) Wait() {
	s.wg.Wait()
}

// GetJob retrieves a job for polling
func (s *ResolutionJobService) GetJob(ctx context.Context, id uuid.UUID) (*models.ResolutionJob, error) {
	if s.jobs == nil {
		return nil, errors.New("job store not set")
	}
	return s.jobs.GetJob(ctx, id)
}

// ProcessResolution runs one resolution and records its steps on the job
func (s *ResolutionJobService) ProcessResolution(ctx context.Context, jobID uuid.UUID, req StartResolutionRequest) error {
	progress := &jobProgress{steps: make(models.ResolutionSteps, 0)}

	res, err := s.briefs.Resolve(ctx, ResolveRequest{
		CaseID: req.CaseID,
		Slot:   req.Slot,
		Intent: req.Intent,
		Observer: func(e Event) {
			if !progress.apply(e) {
				return
			}
			if perr := s.jobs.UpdateJobProgress(ctx, jobID, progress.current, progress.snapshot(), e.Attempt); perr != nil {
				slog.Warn("Failed to record job progress", "job_id", jobID, "error", perr)
			}
		},
	})

	if res.State == StateHardError {
		if ferr := s.jobs.FailJob(ctx, jobID, string(res.State), err.Error(), res.Attempts); ferr != nil {
			return fmt.Errorf("failed to mark job failed: %w", ferr)
		}
		return err
	}

	if cerr := s.jobs.CompleteJob(ctx, jobID, string(res.State), res.Summary, res.Attempts); cerr != nil {
		return fmt.Errorf("failed to complete job: %w", cerr)
	}
	return nil
}

// jobProgress folds orchestrator events into a step list
type jobProgress struct {
	steps   models.ResolutionSteps
	current string
}

func (p *jobProgress) snapshot() models.ResolutionSteps {
	return append(models.ResolutionSteps(nil), p.steps...)
}

func (p *jobProgress) start(name, description string) {
	p.finish("completed")
	p.steps = append(p.steps, models.ResolutionStep{Name: name, Status: "in_progress", Description: description})
	p.current = name
}

func (p *jobProgress) finish(status string) {
	if n := len(p.steps); n > 0 && p.steps[n-1].Status == "in_progress" {
		p.steps[n-1].Status = status
	}
}

// apply reports whether the step list changed
func (p *jobProgress) apply(e Event) bool {
	if e.Kind != EventState {
		return false
	}
	switch e.State {
	case StateLoading:
		n := e.Attempt + 1
		p.start(fmt.Sprintf("generate_%d", n), fmt.Sprintf("Generating brief (attempt %d)", n))
	case StateAwaitingVerification:
		p.start(fmt.Sprintf("verify_%d", e.Attempt), fmt.Sprintf("Verifying brief (attempt %d)", e.Attempt))
	case StateVerified:
		if e.Attempt == 0 && len(p.steps) > 0 {
			p.steps[len(p.steps)-1].Description = "Reused stored verified brief"
		}
		p.finish("completed")
	case StateExhausted:
		p.finish("failed")
	case StateHardError:
		p.finish("failed")
	default:
		return false
	}
	return true
}
