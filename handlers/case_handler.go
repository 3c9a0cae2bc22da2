package handlers

import (
	"net/http"
	"strconv"

	"casebrief-backend/models"
	"casebrief-backend/service"

	"github.com/gin-gonic/gin"
)

// CaseHandler handles HTTP requests for case records
type CaseHandler struct {
	caseService *service.CaseService
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(caseService *service.CaseService) *CaseHandler {
	return &CaseHandler{caseService: caseService}
}

// CreateCase handles POST /api/cases
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req models.CaseFields
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	record, err := h.caseService.CreateCase(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, record)
}

// ListCases handles GET /api/cases?limit=&offset=
func (h *CaseHandler) ListCases(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a number")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "offset must be a number")
		return
	}

	cases, err := h.caseService.ListCases(c.Request.Context(), service.ListCasesRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if cases == nil {
		cases = []*models.CaseRecord{}
	}

	respondOK(c, http.StatusOK, cases)
}

// GetCase handles GET /api/cases/:id
func (h *CaseHandler) GetCase(c *gin.Context) {
	id, ok := parseID(c, "id", "case")
	if !ok {
		return
	}

	record, err := h.caseService.GetCase(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, record)
}

// UpdateMetadataRequest patches one metadata field
type UpdateMetadataRequest struct {
	Field string  `json:"field" binding:"required"`
	Value *string `json:"value" binding:"required"`
}

// UpdateMetadata handles PATCH /api/cases/:id/metadata
func (h *CaseHandler) UpdateMetadata(c *gin.Context) {
	id, ok := parseID(c, "id", "case")
	if !ok {
		return
	}

	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	record, err := h.caseService.UpdateMetadata(c.Request.Context(), id, models.MetadataField(req.Field), *req.Value)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, record)
}
