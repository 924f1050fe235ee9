package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type progressRepo interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.LessonProgress, error)
	Upsert(ctx context.Context, progress *models.LessonProgress) error
	CountCompleted(ctx context.Context, enrollmentID string) (int, error)
}

type enrollmentReader interface {
	Get(ctx context.Context, id string) (*models.Enrollment, error)
}

type lessonCounter interface {
	CountLessons(ctx context.Context, syllabusID string) (int, error)
}

// UpdateProgressRequest records a student's advancement through one lesson.
type UpdateProgressRequest struct {
	LessonID string   `json:"lesson_id" validate:"required,uuid"`
	Status   string   `json:"status" validate:"required,oneof=NOT_STARTED IN_PROGRESS COMPLETED"`
	Score    *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
	Notes    *string  `json:"notes" validate:"omitempty,max=2048"`
}

// ProgressService tracks lesson progress across enrollments. Completing a
// lesson requires an instructor sign-off.
type ProgressService struct {
	progress    progressRepo
	enrollments enrollmentReader
	lessons     lessonCounter

	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressService constructs ProgressService.
func NewProgressService(progress progressRepo, enrollments enrollmentReader, lessons lessonCounter, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		progress:    progress,
		enrollments: enrollments,
		lessons:     lessons,
		validator:   validate,
		logger:      logger,
	}
}

// Update records progress on a lesson for an enrollment. Marking a lesson
// COMPLETED stamps the acting instructor as the sign-off; moving it back
// clears the sign-off. Only the enrollment's assigned instructor or an
// admin may sign a lesson off.
func (s *ProgressService) Update(ctx context.Context, enrollmentID, actorID string, actorRole models.UserRole, req UpdateProgressRequest) (*models.LessonProgress, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
	}

	progress := &models.LessonProgress{
		EnrollmentID: enrollmentID,
		LessonID:     req.LessonID,
		Status:       models.ProgressStatus(req.Status),
		Score:        req.Score,
		Notes:        req.Notes,
	}
	if progress.Status == models.ProgressCompleted {
		if actorID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lesson completion requires an instructor sign-off")
		}
		if actorRole != models.RoleAdmin && actorID != enrollment.InstructorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned instructor may sign off this lesson")
		}
		now := time.Now().UTC()
		progress.SignedOffBy = &actorID
		progress.SignedOffAt = &now
	}
	if err := s.progress.Upsert(ctx, progress); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save progress")
	}
	s.logger.Info("lesson progress updated",
		zap.String("enrollment_id", enrollmentID),
		zap.String("lesson_id", req.LessonID),
		zap.String("status", req.Status))
	return progress, nil
}

// Summary returns the enrollment's completion state across its syllabus.
func (s *ProgressService) Summary(ctx context.Context, enrollmentID string) (*models.EnrollmentProgress, error) {
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.progress.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}
	totalLessons, err := s.lessons.CountLessons(ctx, enrollment.SyllabusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}
	completed := 0
	for _, row := range rows {
		if row.Status == models.ProgressCompleted {
			completed++
		}
	}
	summary := &models.EnrollmentProgress{
		EnrollmentID:     enrollmentID,
		TotalLessons:     totalLessons,
		CompletedLessons: completed,
		Lessons:          rows,
	}
	if totalLessons > 0 {
		summary.PercentComplete = float64(completed) / float64(totalLessons) * 100
	}
	return summary, nil
}
