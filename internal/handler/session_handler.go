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

// SessionHandler exposes exam session endpoints, including the faculty-side
// conflict check, eligibility check and pick.
type SessionHandler struct {
	sessions  *service.SessionService
	importer  *service.ImportService
	conflicts *service.ConflictService
	duties    *service.DutyService
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *service.SessionService, importer *service.ImportService, conflicts *service.ConflictService, duties *service.DutyService) *SessionHandler {
	return &SessionHandler{sessions: sessions, importer: importer, conflicts: conflicts, duties: duties}
}

// List godoc
// @Summary List sessions of an exam type
// @Tags sessions
// @Security BearerAuth
// @Produce json
// @Param exam_type_id query string true "exam type id"
// @Success 200 {object} response.Envelope{data=[]models.ExamSessionDetail}
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	examTypeID := c.Query("exam_type_id")
	if examTypeID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exam_type_id query parameter is required"))
		return
	}
	sessions, err := h.sessions.ListByExamType(c.Request.Context(), examTypeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Get godoc
// @Summary Load one session with its slots
// @Tags sessions
// @Security BearerAuth
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, slots, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"session": session, "slots": slots}, nil)
}

// Create godoc
// @Summary Create one session with its room slots
// @Tags sessions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "session"
// @Success 201 {object} response.Envelope{data=models.ExamSession}
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Import godoc
// @Summary Bulk-import sessions
// @Tags sessions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ImportSessionsRequest true "rows"
// @Success 200 {object} response.Envelope{data=models.ImportSummary}
// @Router /sessions/import [post]
func (h *SessionHandler) Import(c *gin.Context) {
	var req dto.ImportSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	summary, err := h.importer.ImportSessions(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !summary.Committed {
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, summary, nil)
}

// Close godoc
// @Summary Stop further picks for a session
// @Tags sessions
// @Security BearerAuth
// @Param id path string true "session id"
// @Success 204
// @Router /sessions/{id}/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reopen godoc
// @Summary Allow picks again for a session
// @Tags sessions
// @Security BearerAuth
// @Param id path string true "session id"
// @Success 204
// @Router /sessions/{id}/reopen [post]
func (h *SessionHandler) Reopen(c *gin.Context) {
	if err := h.sessions.Reopen(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Remove a session and its slots
// @Tags sessions
// @Security BearerAuth
// @Param id path string true "session id"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListCourses godoc
// @Summary List the course catalogue
// @Tags sessions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.Course}
// @Router /courses [get]
func (h *SessionHandler) ListCourses(c *gin.Context) {
	courses, err := h.sessions.ListCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Conflict godoc
// @Summary Check the caller for time conflicts with a session
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Envelope{data=models.ConflictResult}
// @Router /sessions/{id}/conflict [get]
func (h *SessionHandler) Conflict(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	result, err := h.conflicts.Check(c.Request.Context(), claims.Email, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Eligibility godoc
// @Summary Check whether the caller may pick a slot of this session
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Envelope{data=models.PickEligibility}
// @Router /sessions/{id}/eligibility [get]
func (h *SessionHandler) Eligibility(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	eligibility, err := h.duties.CanPickSlot(c.Request.Context(), claims.Email, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eligibility, nil)
}

// Pick godoc
// @Summary Pick a duty slot in this session
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} response.Envelope{data=models.PickResult}
// @Router /sessions/{id}/pick [post]
func (h *SessionHandler) Pick(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	result, err := h.duties.Pick(c.Request.Context(), claims.Email, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
