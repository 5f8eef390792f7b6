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

// DutyHandler exposes the faculty-side duty workflow: release, confirm and
// progress reporting.
type DutyHandler struct {
	duties *service.DutyService
}

// NewDutyHandler constructs a DutyHandler.
func NewDutyHandler(duties *service.DutyService) *DutyHandler {
	return &DutyHandler{duties: duties}
}

// Release godoc
// @Summary Release a held duty slot
// @Tags duties
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ReleaseDutyRequest true "slot"
// @Success 200 {object} response.Envelope{data=models.ReleaseResult}
// @Router /duties/release [post]
func (h *DutyHandler) Release(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	var req dto.ReleaseDutyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.duties.Release(c.Request.Context(), claims.Email, req.SlotID, req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Confirm godoc
// @Summary Confirm the caller's duty selection
// @Tags duties
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ConfirmDutiesRequest true "exam type"
// @Success 204
// @Router /duties/confirm [post]
func (h *DutyHandler) Confirm(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	var req dto.ConfirmDutiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.duties.Confirm(c.Request.Context(), claims.Email, req.ExamTypeID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Progress godoc
// @Summary Report the caller's requirement progress
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param exam_type_id query string true "exam type id"
// @Success 200 {object} response.Envelope{data=models.RequirementProgress}
// @Router /duties/progress [get]
func (h *DutyHandler) Progress(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	examTypeID := c.Query("exam_type_id")
	if examTypeID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exam_type_id query parameter is required"))
		return
	}
	progress, err := h.duties.Progress(c.Request.Context(), claims.Email, examTypeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// ListHeld godoc
// @Summary List the caller's held duties
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param exam_type_id query string true "exam type id"
// @Success 200 {object} response.Envelope{data=[]models.HeldDuty}
// @Router /duties [get]
func (h *DutyHandler) ListHeld(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	examTypeID := c.Query("exam_type_id")
	if examTypeID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exam_type_id query parameter is required"))
		return
	}
	duties, err := h.duties.ListHeld(c.Request.Context(), claims.Email, examTypeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, duties, nil)
}
