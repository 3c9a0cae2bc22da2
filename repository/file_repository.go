package repository

import (
	"context"
	"errors"

	"casebrief-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FileRepository handles database operations for case documents
type FileRepository struct {
	db *pgxpool.Pool
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *pgxpool.Pool) *FileRepository {
	return &FileRepository{db: db}
}

// CreateFile creates a new file record
func (r *FileRepository) CreateFile(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (
			case_id, filename, mime_type, size, storage_path
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		file.CaseID,
		file.Filename,
		file.MimeType,
		file.Size,
		file.StoragePath,
	).Scan(&file.ID, &file.CreatedAt)
	if isForeignKeyViolation(err) {
		return notFound("case", file.CaseID)
	}
	if err != nil {
		return unavailable("create file", err)
	}
	return nil
}

// GetFile retrieves a file by ID
func (r *FileRepository) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	file := &models.File{}
	query := `
		SELECT id, case_id, filename, mime_type, size, storage_path, created_at
		FROM files
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.CaseID,
		&file.Filename,
		&file.MimeType,
		&file.Size,
		&file.StoragePath,
		&file.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("file", id)
	}
	if err != nil {
		return nil, unavailable("get file", err)
	}
	return file, nil
}

// ListFilesByCase retrieves all documents uploaded for a case
func (r *FileRepository) ListFilesByCase(ctx context.Context, caseID uuid.UUID) ([]*models.File, error) {
	query := `
		SELECT id, case_id, filename, mime_type, size, storage_path, created_at
		FROM files
		WHERE case_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, unavailable("list files", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file := &models.File{}
		err := rows.Scan(
			&file.ID,
			&file.CaseID,
			&file.Filename,
			&file.MimeType,
			&file.Size,
			&file.StoragePath,
			&file.CreatedAt,
		)
		if err != nil {
			return nil, unavailable("list files", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list files", err)
	}
	return files, nil
}
