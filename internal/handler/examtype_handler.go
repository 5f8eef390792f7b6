package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/middleware"
	"github.com/noah-isme/exam-duty-api/internal/service"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
	"github.com/noah-isme/exam-duty-api/pkg/response"
)

// ExamTypeHandler exposes campaign administration: exam types, allocation
// rules, the auto-assignment engine and roster exports.
type ExamTypeHandler struct {
	examTypes  *service.ExamTypeService
	autoAssign *service.AutoAssignService
	exports    *service.ExportService
}

// NewExamTypeHandler constructs an ExamTypeHandler. The exports service may
// be nil when the export surface is disabled.
func NewExamTypeHandler(examTypes *service.ExamTypeService, autoAssign *service.AutoAssignService, exports *service.ExportService) *ExamTypeHandler {
	return &ExamTypeHandler{examTypes: examTypes, autoAssign: autoAssign, exports: exports}
}

// List godoc
// @Summary List exam types
// @Tags exam-types
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.ExamType}
// @Router /exam-types [get]
func (h *ExamTypeHandler) List(c *gin.Context) {
	examTypes, err := h.examTypes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, examTypes, nil)
}

// Get godoc
// @Summary Load one exam type
// @Tags exam-types
// @Security BearerAuth
// @Produce json
// @Param id path string true "exam type id"
// @Success 200 {object} response.Envelope{data=models.ExamType}
// @Router /exam-types/{id} [get]
func (h *ExamTypeHandler) Get(c *gin.Context) {
	examType, err := h.examTypes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, examType, nil)
}

// Create godoc
// @Summary Open a duty-selection campaign
// @Tags exam-types
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CreateExamTypeRequest true "exam type"
// @Success 201 {object} response.Envelope{data=models.ExamType}
// @Router /exam-types [post]
func (h *ExamTypeHandler) Create(c *gin.Context) {
	var req dto.CreateExamTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	examType, err := h.examTypes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, examType)
}

// Update godoc
// @Summary Edit a campaign
// @Tags exam-types
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "exam type id"
// @Param payload body dto.UpdateExamTypeRequest true "exam type"
// @Success 200 {object} response.Envelope{data=models.ExamType}
// @Router /exam-types/{id} [put]
func (h *ExamTypeHandler) Update(c *gin.Context) {
	var req dto.UpdateExamTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	examType, err := h.examTypes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, examType, nil)
}

// Delete godoc
// @Summary Remove a campaign
// @Tags exam-types
// @Security BearerAuth
// @Param id path string true "exam type id"
// @Success 204
// @Router /exam-types/{id} [delete]
func (h *ExamTypeHandler) Delete(c *gin.Context) {
	if err := h.examTypes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListRequirements godoc
// @Summary List cadre requirements
// @Tags exam-types
// @Security BearerAuth
// @Produce json
// @Param id path string true "exam type id"
// @Success 200 {object} response.Envelope{data=[]models.CadreRequirement}
// @Router /exam-types/{id}/requirements [get]
func (h *ExamTypeHandler) ListRequirements(c *gin.Context) {
	requirements, err := h.examTypes.ListRequirements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirements, nil)
}

// UpsertRequirement godoc
// @Summary Set the minimum duties for a cadre
// @Tags exam-types
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "exam type id"
// @Param payload body dto.UpsertRequirementRequest true "requirement"
// @Success 200 {object} response.Envelope{data=models.CadreRequirement}
// @Router /exam-types/{id}/requirements [put]
func (h *ExamTypeHandler) UpsertRequirement(c *gin.Context) {
	var req dto.UpsertRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	requirement, err := h.examTypes.UpsertRequirement(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirement, nil)
}

// ListRestrictions godoc
// @Summary List priority time restrictions
// @Tags exam-types
// @Security BearerAuth
// @Produce json
// @Param id path string true "exam type id"
// @Success 200 {object} response.Envelope{data=[]models.TimeRestriction}
// @Router /exam-types/{id}/restrictions [get]
func (h *ExamTypeHandler) ListRestrictions(c *gin.Context) {
	restrictions, err := h.examTypes.ListRestrictions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, restrictions, nil)
}

// UpsertRestriction godoc
// @Summary Set the priority time window for a cadre
// @Tags exam-types
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "exam type id"
// @Param payload body dto.UpsertRestrictionRequest true "restriction"
// @Success 200 {object} response.Envelope{data=models.TimeRestriction}
// @Router /exam-types/{id}/restrictions [put]
func (h *ExamTypeHandler) UpsertRestriction(c *gin.Context) {
	var req dto.UpsertRestrictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	restriction, err := h.examTypes.UpsertRestriction(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, restriction, nil)
}

// ListExceptions godoc
// @Summary List per-faculty duty exceptions
// @Tags exam-types
// @Security BearerAuth
// @Produce json
// @Param id path string true "exam type id"
// @Success 200 {object} response.Envelope{data=[]models.FacultyDutyException}
// @Router /exam-types/{id}/exceptions [get]
func (h *ExamTypeHandler) ListExceptions(c *gin.Context) {
	exceptions, err := h.examTypes.ListExceptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exceptions, nil)
}

// UpsertException godoc
// @Summary Override duty bounds for one faculty member
// @Tags exam-types
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "exam type id"
// @Param payload body dto.UpsertExceptionRequest true "exception"
// @Success 200 {object} response.Envelope{data=models.FacultyDutyException}
// @Router /exam-types/{id}/exceptions [put]
func (h *ExamTypeHandler) UpsertException(c *gin.Context) {
	var req dto.UpsertExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	exception, err := h.examTypes.UpsertException(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exception, nil)
}

// ListExemptions godoc
// @Summary List restriction exemptions
// @Tags exam-types
// @Security BearerAuth
// @Produce json
// @Param id path string true "exam type id"
// @Success 200 {object} response.Envelope{data=[]models.RestrictionExemption}
// @Router /exam-types/{id}/exemptions [get]
func (h *ExamTypeHandler) ListExemptions(c *gin.Context) {
	exemptions, err := h.examTypes.ListExemptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exemptions, nil)
}

// GrantExemption godoc
// @Summary Waive time restrictions for a faculty email
// @Tags exam-types
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "exam type id"
// @Param payload body dto.CreateExemptionRequest true "exemption"
// @Success 201 {object} response.Envelope{data=models.RestrictionExemption}
// @Router /exam-types/{id}/exemptions [post]
func (h *ExamTypeHandler) GrantExemption(c *gin.Context) {
	var req dto.CreateExemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	grantedBy := ""
	if claims := middleware.Claims(c); claims != nil {
		grantedBy = claims.Email
	}
	exemption, err := h.examTypes.GrantExemption(c.Request.Context(), c.Param("id"), grantedBy, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exemption)
}

// AutoAssign godoc
// @Summary Run an auto-assignment pass
// @Tags exam-types
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "exam type id"
// @Param payload body dto.AutoAssignRequest true "options"
// @Success 200 {object} response.Envelope{data=models.AssignmentReport}
// @Router /exam-types/{id}/auto-assign [post]
func (h *ExamTypeHandler) AutoAssign(c *gin.Context) {
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	report, err := h.autoAssign.Run(c.Request.Context(), c.Param("id"), req.DryRun, req.EnableReallocation)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.Report != "" {
		if h.exports == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
			return
		}
		format := service.ExportFormat(req.Report)
		payload, filename, err := h.exports.AssignmentReport(report, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		contentType := "text/csv"
		if format == service.FormatPDF {
			contentType = "application/pdf"
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, contentType, payload)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportRoster godoc
// @Summary Export the duty roster
// @Tags exam-types
// @Security BearerAuth
// @Produce octet-stream
// @Param id path string true "exam type id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /exam-types/{id}/export [get]
func (h *ExamTypeHandler) ExportRoster(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.FormatCSV)))
	payload, filename, err := h.exports.DutyRoster(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/csv"
	if format == service.FormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
