package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
	"github.com/noah-isme/exam-duty-api/internal/service"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
	"github.com/noah-isme/exam-duty-api/pkg/response"
)

// FacultyHandler exposes roster management endpoints.
type FacultyHandler struct {
	roster *service.RosterService
}

// NewFacultyHandler constructs a FacultyHandler.
func NewFacultyHandler(roster *service.RosterService) *FacultyHandler {
	return &FacultyHandler{roster: roster}
}

// List godoc
// @Summary List faculty
// @Tags faculty
// @Security BearerAuth
// @Produce json
// @Param cadre query string false "filter by cadre"
// @Param department query string false "filter by department"
// @Param search query string false "match name, email or initials"
// @Param page query int false "page number"
// @Param page_size query int false "page size"
// @Success 200 {object} response.Envelope{data=[]models.Faculty}
// @Router /faculty [get]
func (h *FacultyHandler) List(c *gin.Context) {
	filter := models.FacultyFilter{
		Department: c.Query("department"),
		Search:     c.Query("search"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	if cadre := c.Query("cadre"); cadre != "" {
		value := models.Cadre(cadre)
		filter.Cadre = &value
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	faculty, pagination, err := h.roster.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculty, pagination)
}

// Get godoc
// @Summary Load one faculty member
// @Tags faculty
// @Security BearerAuth
// @Produce json
// @Param id path string true "faculty id"
// @Success 200 {object} response.Envelope{data=models.Faculty}
// @Router /faculty/{id} [get]
func (h *FacultyHandler) Get(c *gin.Context) {
	faculty, err := h.roster.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculty, nil)
}

// Create godoc
// @Summary Register a faculty member
// @Tags faculty
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CreateFacultyRequest true "faculty"
// @Success 201 {object} response.Envelope{data=models.Faculty}
// @Router /faculty [post]
func (h *FacultyHandler) Create(c *gin.Context) {
	var req dto.CreateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	faculty, err := h.roster.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, faculty)
}

// Update godoc
// @Summary Edit a faculty member
// @Tags faculty
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "faculty id"
// @Param payload body dto.UpdateFacultyRequest true "faculty"
// @Success 200 {object} response.Envelope{data=models.Faculty}
// @Router /faculty/{id} [put]
func (h *FacultyHandler) Update(c *gin.Context) {
	var req dto.UpdateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	faculty, err := h.roster.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculty, nil)
}

// Delete godoc
// @Summary Remove a faculty member
// @Tags faculty
// @Security BearerAuth
// @Param id path string true "faculty id"
// @Success 204
// @Router /faculty/{id} [delete]
func (h *FacultyHandler) Delete(c *gin.Context) {
	if err := h.roster.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
