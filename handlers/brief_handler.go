package handlers

import (
	"errors"
	"net/http"

	"casebrief-backend/models"
	"casebrief-backend/service"

	"github.com/gin-gonic/gin"
)

// BriefHandler exposes the brief pipeline over HTTP
type BriefHandler struct {
	briefService *service.BriefService
	jobService   *service.ResolutionJobService
}

// NewBriefHandler creates a new brief handler
func NewBriefHandler(briefService *service.BriefService, jobService *service.ResolutionJobService) *BriefHandler {
	return &BriefHandler{
		briefService: briefService,
		jobService:   jobService,
	}
}

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Citation string `json:"citation"`
	Detailed bool   `json:"detailed"`
	DocID    string `json:"docId"`
}

// Generate handles POST /api/generate
func (h *BriefHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	summary, err := h.briefService.Generate(c.Request.Context(), service.GenerateRequest{
		Title:    req.Title,
		Date:     req.Date,
		Citation: req.Citation,
		Detailed: req.Detailed,
		DocID:    req.DocID,
	})
	if err != nil {
		respondBareError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// VerifyRequest is the body of POST /api/verify
type VerifyRequest struct {
	BriefSummary models.BriefSummary `json:"briefSummary"`
	CaseTitle    string              `json:"caseTitle"`
	DecisionDate string              `json:"decisionDate"`
	Citation     string              `json:"citation"`
	Jurisdiction string              `json:"jurisdiction"`
}

// Verify handles POST /api/verify. Upstream and parse failures still answer
// 200 with verified=false.
func (h *BriefHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	verdict, err := h.briefService.Verify(c.Request.Context(), service.VerifyRequest{
		Summary:      req.BriefSummary,
		CaseTitle:    req.CaseTitle,
		DecisionDate: req.DecisionDate,
		Citation:     req.Citation,
		Jurisdiction: req.Jurisdiction,
	})
	if err != nil && !errors.Is(err, service.ErrVerificationFailure) {
		respondBareError(c, err)
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// ResolveResponse is what a client needs to render the three terminal outcomes
type ResolveResponse struct {
	State    service.State               `json:"state"`
	Attempts int                         `json:"attempts"`
	Summary  *models.BriefSummary        `json:"summary"`
	Verdict  *models.VerificationVerdict `json:"verdict,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

func parseSlotIntent(c *gin.Context) (models.Slot, models.Intent, bool) {
	slot, err := models.ParseSlot(c.Param("slot"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_SLOT", err.Error())
		return "", "", false
	}
	intent, err := models.ParseIntent(c.Query("intent"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_INTENT", err.Error())
		return "", "", false
	}
	return slot, intent, true
}

// Resolve handles POST /api/cases/:id/briefs/:slot/resolve
func (h *BriefHandler) Resolve(c *gin.Context) {
	id, ok := parseID(c, "id", "case")
	if !ok {
		return
	}
	slot, intent, ok := parseSlotIntent(c)
	if !ok {
		return
	}

	res, err := h.briefService.Resolve(c.Request.Context(), service.ResolveRequest{
		CaseID: id,
		Slot:   slot,
		Intent: intent,
	})
	if err != nil {
		status, code := errorStatus(err)
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
			"data": ResolveResponse{
				State:    res.State,
				Attempts: res.Attempts,
				Summary:  res.Summary,
				Error:    err.Error(),
			},
		})
		return
	}

	respondOK(c, http.StatusOK, ResolveResponse{
		State:    res.State,
		Attempts: res.Attempts,
		Summary:  res.Summary,
		Verdict:  res.Verdict,
	})
}

// StartResolution handles POST /api/cases/:id/briefs/:slot/jobs
func (h *BriefHandler) StartResolution(c *gin.Context) {
	id, ok := parseID(c, "id", "case")
	if !ok {
		return
	}
	slot, intent, ok := parseSlotIntent(c)
	if !ok {
		return
	}

	result, err := h.jobService.StartResolution(c.Request.Context(), service.StartResolutionRequest{
		CaseID: id,
		Slot:   slot,
		Intent: intent,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusAccepted, gin.H{
		"job_id":  result.JobID,
		"status":  models.JobStatusPending,
		"message": "Resolution job created. Poll /api/jobs/:id for updates.",
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *BriefHandler) GetJobStatus(c *gin.Context) {
	id, ok := parseID(c, "id", "job")
	if !ok {
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, job)
}
