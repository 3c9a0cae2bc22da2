package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"casebrief-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResolutionJobRepository handles database operations for resolution jobs
type ResolutionJobRepository struct {
	db *pgxpool.Pool
}

// NewResolutionJobRepository creates a new resolution job repository
func NewResolutionJobRepository(db *pgxpool.Pool) *ResolutionJobRepository {
	return &ResolutionJobRepository{db: db}
}

// CreateJob creates a new resolution job
func (r *ResolutionJobRepository) CreateJob(ctx context.Context, job *models.ResolutionJob) error {
	query := `
		INSERT INTO resolution_jobs (
			case_id, slot, intent, status, current_step, steps, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		job.CaseID,
		job.Slot,
		job.Intent,
		job.Status,
		job.CurrentStep,
		job.Steps,
		job.ErrorMessage,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return unavailable("create job", err)
	}
	return nil
}

// GetJob retrieves a resolution job by ID
func (r *ResolutionJobRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.ResolutionJob, error) {
	job := &models.ResolutionJob{}
	query := `
		SELECT id, case_id, slot, intent, status, outcome, current_step, steps,
			attempts, summary, error_message, created_at, updated_at, completed_at
		FROM resolution_jobs
		WHERE id = $1`

	var outcome *string
	var summary []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.CaseID,
		&job.Slot,
		&job.Intent,
		&job.Status,
		&outcome,
		&job.CurrentStep,
		&job.Steps,
		&job.Attempts,
		&summary,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("job", id)
	}
	if err != nil {
		return nil, unavailable("get job", err)
	}

	if outcome != nil {
		job.Outcome = *outcome
	}
	if job.Summary, err = decodeSummary(summary); err != nil {
		return nil, err
	}
	if job.Steps == nil {
		job.Steps = make(models.ResolutionSteps, 0)
	}
	return job, nil
}

// UpdateJobProgress records the current step list
func (r *ResolutionJobRepository) UpdateJobProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.ResolutionSteps, attempts int) error {
	query := `
		UPDATE resolution_jobs SET
			status = $2,
			current_step = $3,
			steps = $4,
			attempts = $5,
			updated_at = NOW()
		WHERE id = $1`

	return r.exec(ctx, "update job", query, id, models.JobStatusInProgress, currentStep, steps, attempts)
}

// CompleteJob marks a job completed with its terminal outcome
func (r *ResolutionJobRepository) CompleteJob(ctx context.Context, id uuid.UUID, outcome string, summary *models.BriefSummary, attempts int) error {
	var raw []byte
	if summary != nil {
		var err error
		if raw, err = json.Marshal(summary); err != nil {
			return err
		}
	}

	now := time.Now()
	query := `
		UPDATE resolution_jobs SET
			status = $2,
			outcome = $3,
			summary = $4,
			attempts = $5,
			completed_at = $6,
			updated_at = $6
		WHERE id = $1`

	return r.exec(ctx, "complete job", query, id, models.JobStatusCompleted, outcome, raw, attempts, now)
}

// FailJob marks a job failed
func (r *ResolutionJobRepository) FailJob(ctx context.Context, id uuid.UUID, outcome, errorMessage string, attempts int) error {
	now := time.Now()
	query := `
		UPDATE resolution_jobs SET
			status = $2,
			outcome = $3,
			error_message = $4,
			attempts = $5,
			completed_at = $6,
			updated_at = $6
		WHERE id = $1`

	return r.exec(ctx, "fail job", query, id, models.JobStatusFailed, outcome, errorMessage, attempts, now)
}

func (r *ResolutionJobRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return unavailable(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("job", args[0])
	}
	return nil
}
