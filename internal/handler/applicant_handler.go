package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/drivehq/selection-api/internal/models"
	"github.com/drivehq/selection-api/internal/service"
	appErrors "github.com/drivehq/selection-api/pkg/errors"
	"github.com/drivehq/selection-api/pkg/response"
)

// ApplicantHandler exposes the lifecycle engine over HTTP.
type ApplicantHandler struct {
	applicants *service.ApplicantService
	exports    *service.ExportService
}

// NewApplicantHandler constructs ApplicantHandler.
func NewApplicantHandler(applicants *service.ApplicantService, exports *service.ExportService) *ApplicantHandler {
	return &ApplicantHandler{applicants: applicants, exports: exports}
}

// ListStages godoc
// @Summary List selection stages and their rounds
// @Tags Applicants
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applicants/lists [get]
func (h *ApplicantHandler) ListStages(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.applicants.ListStages(), nil)
}

// Create godoc
// @Summary Register an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param payload body service.CreateApplicantRequest true "Applicant payload"
// @Success 201 {object} response.Envelope
// @Router /applicants [post]
func (h *ApplicantHandler) Create(c *gin.Context) {
	var req service.CreateApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	applicant, err := h.applicants.Create(c.Request.Context(), req, principalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, applicant)
}

// Search godoc
// @Summary Search applicants
// @Tags Applicants
// @Produce json
// @Param q query string false "Substring matched against name, code, contact, college, branch, email"
// @Param listName query string false "Exact stage filter"
// @Param limit query int false "Result cap (max 500)"
// @Success 200 {object} response.Envelope
// @Router /applicants/search [get]
func (h *ApplicantHandler) Search(c *gin.Context) {
	filter := models.ApplicantFilter{
		Query: strings.TrimSpace(c.Query("q")),
		Stage: c.Query("listName"),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		filter.Limit = limit
	}
	applicants, err := h.applicants.Search(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicants, nil)
}

// Update godoc
// @Summary Partially update an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body service.UpdateApplicantRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id} [put]
func (h *ApplicantHandler) Update(c *gin.Context) {
	var req service.UpdateApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	applicant, err := h.applicants.Update(c.Request.Context(), c.Param("id"), req, principalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// Promote godoc
// @Summary Promote an applicant to the next stage
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/promote [put]
func (h *ApplicantHandler) Promote(c *gin.Context) {
	applicant, err := h.applicants.Promote(c.Request.Context(), c.Param("id"), principalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// Delete godoc
// @Summary Delete an applicant
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id} [delete]
func (h *ApplicantHandler) Delete(c *gin.Context) {
	if err := h.applicants.Delete(c.Request.Context(), c.Param("id"), principalFrom(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"success": true}, nil)
}

// GetAudit godoc
// @Summary Get an applicant's audit trail
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/audit [get]
func (h *ApplicantHandler) GetAudit(c *gin.Context) {
	trail, err := h.applicants.GetAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trail, nil)
}

// Export godoc
// @Summary Export applicants as CSV or PDF
// @Tags Applicants
// @Produce text/csv
// @Param listName query string false "Exact stage filter"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {string} string "rendered report"
// @Router /applicants/export [get]
func (h *ApplicantHandler) Export(c *gin.Context) {
	result, err := h.exports.Generate(c.Request.Context(), c.Query("listName"), c.DefaultQuery("format", "csv"), principalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
