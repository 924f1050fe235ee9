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

// TrainingHandler exposes syllabus, enrollment and progress endpoints.
type TrainingHandler struct {
	syllabi     *service.SyllabusService
	enrollments *service.EnrollmentService
	progress    *service.ProgressService
}

// NewTrainingHandler creates a new training handler.
func NewTrainingHandler(syllabi *service.SyllabusService, enrollments *service.EnrollmentService, progress *service.ProgressService) *TrainingHandler {
	return &TrainingHandler{syllabi: syllabi, enrollments: enrollments, progress: progress}
}

// CreateSyllabus godoc
// @Summary Create syllabus
// @Tags Training
// @Accept json
// @Produce json
// @Param payload body service.SyllabusRequest true "Syllabus payload"
// @Success 201 {object} response.Envelope
// @Router /syllabi [post]
func (h *TrainingHandler) CreateSyllabus(c *gin.Context) {
	var req service.SyllabusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	syllabus, err := h.syllabi.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, syllabus)
}

// GetSyllabus godoc
// @Summary Get syllabus
// @Description Get a syllabus with its lessons in curriculum order
// @Tags Training
// @Produce json
// @Param id path string true "Syllabus ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /syllabi/{id} [get]
func (h *TrainingHandler) GetSyllabus(c *gin.Context) {
	syllabus, err := h.syllabi.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabus, nil)
}

// ListSyllabi godoc
// @Summary List syllabi
// @Tags Training
// @Produce json
// @Param active query bool false "Active only"
// @Success 200 {object} response.Envelope
// @Router /syllabi [get]
func (h *TrainingHandler) ListSyllabi(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	syllabi, err := h.syllabi.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabi, nil)
}

// UpdateSyllabus godoc
// @Summary Update syllabus
// @Tags Training
// @Accept json
// @Produce json
// @Param id path string true "Syllabus ID"
// @Param payload body service.SyllabusRequest true "Syllabus payload"
// @Success 200 {object} response.Envelope
// @Router /syllabi/{id} [put]
func (h *TrainingHandler) UpdateSyllabus(c *gin.Context) {
	var req service.SyllabusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	syllabus, err := h.syllabi.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, syllabus, nil)
}

// AddLesson godoc
// @Summary Add lesson
// @Description Append a lesson to a syllabus
// @Tags Training
// @Accept json
// @Produce json
// @Param id path string true "Syllabus ID"
// @Param payload body service.LessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Router /syllabi/{id}/lessons [post]
func (h *TrainingHandler) AddLesson(c *gin.Context) {
	var req service.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.syllabi.AddLesson(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// UpdateLesson godoc
// @Summary Update lesson
// @Tags Training
// @Accept json
// @Produce json
// @Param lessonId path string true "Lesson ID"
// @Param payload body service.LessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Router /lessons/{lessonId} [put]
func (h *TrainingHandler) UpdateLesson(c *gin.Context) {
	var req service.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.syllabi.UpdateLesson(c.Request.Context(), c.Param("lessonId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Enroll godoc
// @Summary Enroll student
// @Description Enroll a student into a syllabus with a primary instructor
// @Tags Training
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *TrainingHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// GetEnrollment godoc
// @Summary Get enrollment
// @Tags Training
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *TrainingHandler) GetEnrollment(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ListEnrollments godoc
// @Summary List enrollments
// @Tags Training
// @Produce json
// @Param student_id query string false "Student ID"
// @Param instructor_id query string false "Instructor ID"
// @Param syllabus_id query string false "Syllabus ID"
// @Param status query string false "Enrollment status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *TrainingHandler) ListEnrollments(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("student_id")
	filter.InstructorID = c.Query("instructor_id")
	filter.SyllabusID = c.Query("syllabus_id")
	if status := c.Query("status"); status != "" {
		st := models.EnrollmentStatus(status)
		filter.Status = &st
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// CompleteEnrollment godoc
// @Summary Complete enrollment
// @Tags Training
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/complete [post]
func (h *TrainingHandler) CompleteEnrollment(c *gin.Context) {
	enrollment, err := h.enrollments.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// WithdrawEnrollment godoc
// @Summary Withdraw enrollment
// @Tags Training
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/withdraw [post]
func (h *TrainingHandler) WithdrawEnrollment(c *gin.Context) {
	enrollment, err := h.enrollments.Withdraw(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ReassignInstructor godoc
// @Summary Reassign instructor
// @Tags Training
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body object true "Instructor payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/instructor [put]
func (h *TrainingHandler) ReassignInstructor(c *gin.Context) {
	var req struct {
		InstructorID string `json:"instructor_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.ReassignInstructor(c.Request.Context(), c.Param("id"), req.InstructorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// UpdateProgress godoc
// @Summary Update lesson progress
// @Description Record a student's advancement through one lesson
// @Tags Training
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/{id}/progress [put]
func (h *TrainingHandler) UpdateProgress(c *gin.Context) {
	var req service.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID := ""
	var actorRole models.UserRole
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
		actorRole = claims.Role
	}
	progress, err := h.progress.Update(c.Request.Context(), c.Param("id"), actorID, actorRole, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// ProgressSummary godoc
// @Summary Enrollment progress
// @Description Summarise an enrollment's completion across its syllabus
// @Tags Training
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/progress [get]
func (h *TrainingHandler) ProgressSummary(c *gin.Context) {
	summary, err := h.progress.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
