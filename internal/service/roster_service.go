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

type studentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUser(ctx context.Context, userID string) (*models.Student, error)
	List(ctx context.Context, filter models.RosterFilter) ([]models.Student, int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type instructorRepo interface {
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
	FindByUser(ctx context.Context, userID string) (*models.Instructor, error)
	List(ctx context.Context, filter models.RosterFilter) ([]models.Instructor, int, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
}

// CreateStudentRequest attaches a student profile to an existing user.
type CreateStudentRequest struct {
	UserID        string  `json:"user_id" validate:"required,uuid"`
	LicenceNumber string  `json:"licence_number" validate:"max=32"`
	MedicalExpiry *string `json:"medical_expiry" validate:"omitempty,datetime=2006-01-02"`
}

// CreateInstructorRequest attaches an instructor profile to an existing user.
type CreateInstructorRequest struct {
	UserID            string  `json:"user_id" validate:"required,uuid"`
	CertificateNumber string  `json:"certificate_number" validate:"required,max=32"`
	Ratings           string  `json:"ratings" validate:"max=128"`
	HireDate          *string `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
}

// RosterService manages student and instructor profiles.
type RosterService struct {
	students    studentRepo
	instructors instructorRepo
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(students studentRepo, instructors instructorRepo, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{students: students, instructors: instructors, validator: validate, logger: logger}
}

// CreateStudent registers a student profile.
func (s *RosterService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if existing, err := s.students.FindByUser(ctx, req.UserID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has a student profile")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student profile")
	}

	now := time.Now().UTC()
	student := &models.Student{
		UserID:         req.UserID,
		LicenceNumber:  req.LicenceNumber,
		EnrollmentDate: &now,
		Active:         true,
	}
	if req.MedicalExpiry != nil {
		expiry, err := time.Parse("2006-01-02", *req.MedicalExpiry)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid medical expiry date")
		}
		student.MedicalExpiry = &expiry
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID), zap.String("user_id", student.UserID))
	return student, nil
}

// GetStudent returns one student profile.
func (s *RosterService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetStudentByUser returns the student profile attached to a user account.
func (s *RosterService) GetStudentByUser(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.students.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ListStudents returns students matching the filter.
func (s *RosterService) ListStudents(ctx context.Context, filter models.RosterFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// SetSoloEndorsement records or withdraws a student's solo endorsement.
func (s *RosterService) SetSoloEndorsement(ctx context.Context, id string, endorsed bool) (*models.Student, error) {
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	student.SoloEndorsed = endorsed
	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// DeactivateStudent marks a student inactive without deleting history.
func (s *RosterService) DeactivateStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	student.Active = false
	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// CreateInstructor registers an instructor profile.
func (s *RosterService) CreateInstructor(ctx context.Context, req CreateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	if existing, err := s.instructors.FindByUser(ctx, req.UserID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has an instructor profile")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor profile")
	}

	instructor := &models.Instructor{
		UserID:            req.UserID,
		CertificateNumber: req.CertificateNumber,
		Ratings:           req.Ratings,
		Active:            true,
	}
	if req.HireDate != nil {
		hired, err := time.Parse("2006-01-02", *req.HireDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid hire date")
		}
		instructor.HireDate = &hired
	}
	if err := s.instructors.Create(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	s.logger.Info("instructor registered", zap.String("instructor_id", instructor.ID), zap.String("user_id", instructor.UserID))
	return instructor, nil
}

// GetInstructor returns one instructor profile.
func (s *RosterService) GetInstructor(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, err := s.instructors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// ListInstructors returns instructors matching the filter.
func (s *RosterService) ListInstructors(ctx context.Context, filter models.RosterFilter) ([]models.Instructor, *models.Pagination, error) {
	instructors, total, err := s.instructors.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	return instructors, paginationFor(filter.Page, filter.PageSize, total), nil
}

// DeactivateInstructor marks an instructor inactive.
func (s *RosterService) DeactivateInstructor(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, err := s.GetInstructor(ctx, id)
	if err != nil {
		return nil, err
	}
	instructor.Active = false
	if err := s.instructors.Update(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return instructor, nil
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
