package handlers

import (
	"net/http"
	"strings"

	"casebrief-backend/models"
	"casebrief-backend/service"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the caller's opaque identity
const UserIDHeader = "X-User-ID"

// FavoriteHandler handles HTTP requests for saved cases
type FavoriteHandler struct {
	caseService *service.CaseService
}

// NewFavoriteHandler creates a new favorite handler
func NewFavoriteHandler(caseService *service.CaseService) *FavoriteHandler {
	return &FavoriteHandler{caseService: caseService}
}

func userID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if id == "" {
		respondError(c, http.StatusUnauthorized, "MISSING_USER_ID", UserIDHeader+" header is required")
		return "", false
	}
	return id, true
}

// ListFavorites handles GET /api/favorites
func (h *FavoriteHandler) ListFavorites(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	cases, err := h.caseService.ListFavorites(c.Request.Context(), user)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if cases == nil {
		cases = []*models.CaseRecord{}
	}

	respondOK(c, http.StatusOK, cases)
}

// AddFavorite handles PUT /api/favorites/:caseId
func (h *FavoriteHandler) AddFavorite(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}
	caseID, ok := parseID(c, "caseId", "case")
	if !ok {
		return
	}

	if err := h.caseService.AddFavorite(c.Request.Context(), user, caseID); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"case_id": caseID})
}

// RemoveFavorite handles DELETE /api/favorites/:caseId
func (h *FavoriteHandler) RemoveFavorite(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}
	caseID, ok := parseID(c, "caseId", "case")
	if !ok {
		return
	}

	if err := h.caseService.RemoveFavorite(c.Request.Context(), user, caseID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
