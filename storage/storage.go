package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a stored document no longer exists
var ErrObjectNotFound = errors.New("object not found")

// Storage holds uploaded case documents
type Storage interface {
	// Put stores a document under its case and returns the object key
	Put(ctx context.Context, caseID, fileID uuid.UUID, filename, contentType string, data io.Reader) (string, error)

	// Open streams a stored document
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Remove deletes a stored document. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Type selects a storage backend
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// Config holds configuration for storage
type Config struct {
	Type         Type   `validate:"oneof=local s3"`
	LocalPath    string // For local storage
	S3Bucket     string `validate:"required_if=Type s3"`
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// New creates a storage backend from configuration
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	case TypeS3:
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// objectKey builds cases/<caseID>/<fileID>_<sanitized name><ext>
func objectKey(caseID, fileID uuid.UUID, filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(filename)
	baseName := strings.TrimSuffix(filename, ext)
	baseName = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', '"', ':':
			return '_'
		}
		return r
	}, baseName)

	return fmt.Sprintf("cases/%s/%s_%s%s", caseID, fileID, baseName, ext)
}

// ContentType infers a MIME type from a filename
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
