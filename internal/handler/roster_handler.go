package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/service"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/response"
)

// RosterHandler exposes student and instructor roster endpoints.
type RosterHandler struct {
	roster *service.RosterService
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(roster *service.RosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

func rosterFilterFromQuery(c *gin.Context) models.RosterFilter {
	var filter models.RosterFilter
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// CreateStudent godoc
// @Summary Register student
// @Description Attach a student profile to an existing user
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *RosterHandler) CreateStudent(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.roster.CreateStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// GetStudent godoc
// @Summary Get student
// @Tags Roster
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *RosterHandler) GetStudent(c *gin.Context) {
	student, err := h.roster.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ListStudents godoc
// @Summary List students
// @Tags Roster
// @Produce json
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *RosterHandler) ListStudents(c *gin.Context) {
	students, pagination, err := h.roster.ListStudents(c.Request.Context(), rosterFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// SetSoloEndorsement godoc
// @Summary Set solo endorsement
// @Description Record or withdraw a student's solo endorsement
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body object true "Endorsement payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/solo-endorsement [put]
func (h *RosterHandler) SetSoloEndorsement(c *gin.Context) {
	var req struct {
		Endorsed *bool `json:"endorsed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.roster.SetSoloEndorsement(c.Request.Context(), c.Param("id"), *req.Endorsed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// DeactivateStudent godoc
// @Summary Deactivate student
// @Tags Roster
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/deactivate [post]
func (h *RosterHandler) DeactivateStudent(c *gin.Context) {
	student, err := h.roster.DeactivateStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// CreateInstructor godoc
// @Summary Register instructor
// @Description Attach an instructor profile to an existing user
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body service.CreateInstructorRequest true "Instructor payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /instructors [post]
func (h *RosterHandler) CreateInstructor(c *gin.Context) {
	var req service.CreateInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instructor, err := h.roster.CreateInstructor(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instructor)
}

// GetInstructor godoc
// @Summary Get instructor
// @Tags Roster
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructors/{id} [get]
func (h *RosterHandler) GetInstructor(c *gin.Context) {
	instructor, err := h.roster.GetInstructor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// ListInstructors godoc
// @Summary List instructors
// @Tags Roster
// @Produce json
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *RosterHandler) ListInstructors(c *gin.Context) {
	instructors, pagination, err := h.roster.ListInstructors(c.Request.Context(), rosterFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, pagination)
}

// DeactivateInstructor godoc
// @Summary Deactivate instructor
// @Tags Roster
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/deactivate [post]
func (h *RosterHandler) DeactivateInstructor(c *gin.Context) {
	instructor, err := h.roster.DeactivateInstructor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}
