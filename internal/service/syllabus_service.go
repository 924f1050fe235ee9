package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type syllabusRepo interface {
	FindByID(ctx context.Context, id string) (*models.Syllabus, error)
	List(ctx context.Context, activeOnly bool) ([]models.Syllabus, error)
	Create(ctx context.Context, syllabus *models.Syllabus) error
	Update(ctx context.Context, syllabus *models.Syllabus) error
	FindLesson(ctx context.Context, id string) (*models.Lesson, error)
	ListLessons(ctx context.Context, syllabusID string) ([]models.Lesson, error)
	CreateLesson(ctx context.Context, lesson *models.Lesson) error
	UpdateLesson(ctx context.Context, lesson *models.Lesson) error
}

// SyllabusRequest creates or updates a training course.
type SyllabusRequest struct {
	Code        string  `json:"code" validate:"required,max=16"`
	Name        string  `json:"name" validate:"required,max=128"`
	Description *string `json:"description" validate:"omitempty,max=2048"`
	Active      *bool   `json:"active"`
}

// LessonRequest creates or updates a syllabus lesson.
type LessonRequest struct {
	Stage          int     `json:"stage" validate:"required,min=1"`
	Sequence       int     `json:"sequence" validate:"required,min=1"`
	Title          string  `json:"title" validate:"required,max=128"`
	Objectives     *string `json:"objectives" validate:"omitempty,max=4096"`
	MinFlightHours float64 `json:"min_flight_hours" validate:"gte=0,lte=24"`
	MinGroundHours float64 `json:"min_ground_hours" validate:"gte=0,lte=24"`
}

// SyllabusService manages training courses and their lessons.
type SyllabusService struct {
	syllabi   syllabusRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSyllabusService constructs SyllabusService.
func NewSyllabusService(syllabi syllabusRepo, validate *validator.Validate, logger *zap.Logger) *SyllabusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyllabusService{syllabi: syllabi, validator: validate, logger: logger}
}

// Create registers a new syllabus.
func (s *SyllabusService) Create(ctx context.Context, req SyllabusRequest) (*models.Syllabus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid syllabus payload")
	}
	syllabus := &models.Syllabus{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	}
	if req.Active != nil {
		syllabus.Active = *req.Active
	}
	if err := s.syllabi.Create(ctx, syllabus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create syllabus")
	}
	s.logger.Info("syllabus created", zap.String("syllabus_id", syllabus.ID), zap.String("code", syllabus.Code))
	return syllabus, nil
}

// Get returns a syllabus with its lessons in curriculum order.
func (s *SyllabusService) Get(ctx context.Context, id string) (*models.Syllabus, error) {
	syllabus, err := s.syllabi.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "syllabus not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load syllabus")
	}
	lessons, err := s.syllabi.ListLessons(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	syllabus.Lessons = lessons
	return syllabus, nil
}

// List returns syllabi, optionally restricted to active ones.
func (s *SyllabusService) List(ctx context.Context, activeOnly bool) ([]models.Syllabus, error) {
	syllabi, err := s.syllabi.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list syllabi")
	}
	return syllabi, nil
}

// Update replaces the mutable fields of a syllabus.
func (s *SyllabusService) Update(ctx context.Context, id string, req SyllabusRequest) (*models.Syllabus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid syllabus payload")
	}
	syllabus, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	syllabus.Code = req.Code
	syllabus.Name = req.Name
	syllabus.Description = req.Description
	if req.Active != nil {
		syllabus.Active = *req.Active
	}
	if err := s.syllabi.Update(ctx, syllabus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update syllabus")
	}
	return syllabus, nil
}

// AddLesson appends a lesson to a syllabus.
func (s *SyllabusService) AddLesson(ctx context.Context, syllabusID string, req LessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.Get(ctx, syllabusID); err != nil {
		return nil, err
	}
	lesson := &models.Lesson{
		SyllabusID:     syllabusID,
		Stage:          req.Stage,
		Sequence:       req.Sequence,
		Title:          req.Title,
		Objectives:     req.Objectives,
		MinFlightHours: req.MinFlightHours,
		MinGroundHours: req.MinGroundHours,
	}
	if err := s.syllabi.CreateLesson(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// UpdateLesson replaces the mutable fields of a lesson.
func (s *SyllabusService) UpdateLesson(ctx context.Context, lessonID string, req LessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson, err := s.syllabi.FindLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	lesson.Stage = req.Stage
	lesson.Sequence = req.Sequence
	lesson.Title = req.Title
	lesson.Objectives = req.Objectives
	lesson.MinFlightHours = req.MinFlightHours
	lesson.MinGroundHours = req.MinGroundHours
	if err := s.syllabi.UpdateLesson(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}
