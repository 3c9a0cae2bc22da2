package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"casebrief-backend/models"
	"casebrief-backend/repository"
	"casebrief-backend/service"
	"casebrief-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FileHandler handles uploads and downloads of case documents
type FileHandler struct {
	files            repository.FileStore
	caseService      *service.CaseService
	storage          storage.Storage
	maxFileSize      int64
	allowedMimeTypes map[string]bool
}

// NewFileHandler creates a new file handler
func NewFileHandler(files repository.FileStore, caseService *service.CaseService, store storage.Storage) *FileHandler {
	return &FileHandler{
		files:       files,
		caseService: caseService,
		storage:     store,
		maxFileSize: 10 * 1024 * 1024, // 10MB
		allowedMimeTypes: map[string]bool{
			"application/pdf":    true,
			"application/msword": true, // .doc
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true, // .docx
		},
	}
}

func isText(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

// UploadFile handles POST /api/files/upload (multipart: case_id, file).
// Text documents also replace the case's content.
func (h *FileHandler) UploadFile(c *gin.Context) {
	caseID, err := uuid.Parse(c.PostForm("case_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CASE_ID", "Invalid case_id format")
		return
	}

	if _, err := h.caseService.GetCase(c.Request.Context(), caseID); err != nil {
		respondServiceError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	if fileHeader.Size > h.maxFileSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = storage.ContentType(fileHeader.Filename)
	}

	if !h.allowedMimeTypes[mimeType] && !isText(mimeType) {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE",
			"File type not allowed. Allowed types: PDF, DOC, DOCX and text")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer src.Close()

	var (
		body    io.Reader = src
		content string
	)
	if isText(mimeType) {
		data, err := io.ReadAll(io.LimitReader(src, h.maxFileSize))
		if err != nil {
			respondError(c, http.StatusInternalServerError, "FILE_READ_ERROR", err.Error())
			return
		}
		if !utf8.Valid(data) {
			respondError(c, http.StatusBadRequest, "INVALID_ENCODING", "Text documents must be UTF-8")
			return
		}
		content = string(data)
		body = bytes.NewReader(data)
	}

	fileID := uuid.New()
	key, err := h.storage.Put(c.Request.Context(), caseID, fileID, fileHeader.Filename, mimeType, body)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED",
			fmt.Sprintf("Failed to upload file: %v", err))
		return
	}

	record := &models.File{
		CaseID:      caseID,
		Filename:    fileHeader.Filename,
		MimeType:    mimeType,
		Size:        fileHeader.Size,
		StoragePath: key,
	}
	if err := h.files.CreateFile(c.Request.Context(), record); err != nil {
		if rmErr := h.storage.Remove(c.Request.Context(), key); rmErr != nil {
			slog.Warn("Failed to clean up stored document", "key", key, "error", rmErr)
		}
		respondServiceError(c, err)
		return
	}

	contentUpdated := false
	if content != "" {
		if _, err := h.caseService.UpdateMetadata(c.Request.Context(), caseID, models.FieldContent, content); err != nil {
			slog.Warn("Failed to copy document text into case", "case_id", caseID, "file_id", record.ID, "error", err)
		} else {
			contentUpdated = true
		}
	}

	respondOK(c, http.StatusCreated, gin.H{
		"id":              record.ID,
		"case_id":         record.CaseID,
		"filename":        record.Filename,
		"mime_type":       record.MimeType,
		"size":            record.Size,
		"content_updated": contentUpdated,
		"created_at":      record.CreatedAt,
	})
}

// GetFile handles GET /api/files/:id
func (h *FileHandler) GetFile(c *gin.Context) {
	id, ok := parseID(c, "id", "file")
	if !ok {
		return
	}

	file, err := h.files.GetFile(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	reader, err := h.storage.Open(c.Request.Context(), file.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Stored document is missing")
			return
		}
		respondError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED",
			fmt.Sprintf("Failed to download file: %v", err))
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, file.Size, file.MimeType, reader, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}),
	})
}
