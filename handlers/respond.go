package handlers

import (
	"errors"
	"net/http"

	"casebrief-backend/repository"
	"casebrief-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// errorStatus maps service and repository errors onto HTTP statuses
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	case errors.Is(err, repository.ErrStaleRevision):
		return http.StatusConflict, "STALE_REVISION"
	case errors.Is(err, service.ErrGenerationFailure):
		return http.StatusInternalServerError, "GENERATION_FAILED"
	case errors.Is(err, service.ErrVerificationFailure):
		return http.StatusInternalServerError, "VERIFICATION_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondServiceError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	respondError(c, status, code, err.Error())
}

// respondBareError writes the { "error": string } shape of the generate and verify contracts
func respondBareError(c *gin.Context, err error) {
	status, _ := errorStatus(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+what+" ID format")
		return uuid.Nil, false
	}
	return id, true
}
