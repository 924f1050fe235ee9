package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type enrollmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	HasActive(ctx context.Context, studentID, syllabusID string) (bool, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, endDate *time.Time) error
	UpdateInstructor(ctx context.Context, id, instructorID string) error
}

// EnrollRequest enrolls a student into a syllabus.
type EnrollRequest struct {
	StudentID    string `json:"student_id" validate:"required,uuid"`
	SyllabusID   string `json:"syllabus_id" validate:"required,uuid"`
	InstructorID string `json:"instructor_id" validate:"required,uuid"`
}

// EnrollmentService manages student enrollments.
type EnrollmentService struct {
	enrollments enrollmentRepo
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepo, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{enrollments: enrollments, validator: validate, logger: logger}
}

// Enroll creates an active enrollment. A student can hold at most one
// active enrollment per syllabus.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	active, err := s.enrollments.HasActive(ctx, req.StudentID, req.SyllabusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this syllabus")
	}

	enrollment := &models.Enrollment{
		StudentID:    req.StudentID,
		SyllabusID:   req.SyllabusID,
		InstructorID: req.InstructorID,
		Status:       models.EnrollmentActive,
		StartDate:    time.Now().UTC(),
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("syllabus_id", enrollment.SyllabusID))
	return enrollment, nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Complete closes an enrollment as COMPLETED.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.close(ctx, id, models.EnrollmentCompleted)
}

// Withdraw closes an enrollment as WITHDRAWN.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.close(ctx, id, models.EnrollmentWithdrawn)
}

// ReassignInstructor changes the primary instructor on an active enrollment.
func (s *EnrollmentService) ReassignInstructor(ctx context.Context, id, instructorID string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentActive {
		return nil, appErrors.Clone(appErrors.ErrStatusTransition, "enrollment is not active")
	}
	if err := s.enrollments.UpdateInstructor(ctx, id, instructorID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign instructor")
	}
	enrollment.InstructorID = instructorID
	return enrollment, nil
}

func (s *EnrollmentService) close(ctx context.Context, id string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentActive {
		return nil, appErrors.Clone(appErrors.ErrStatusTransition, "enrollment is not active")
	}
	now := time.Now().UTC()
	if err := s.enrollments.UpdateStatus(ctx, id, status, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close enrollment")
	}
	enrollment.Status = status
	enrollment.EndDate = &now
	return enrollment, nil
}
