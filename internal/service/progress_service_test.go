package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

const testLessonID = "3b1a6f44-9c7d-4e2a-8f5b-2d9c7e1a4b60"

type mockProgressRepo struct {
	rows     []models.LessonProgress
	upserted *models.LessonProgress
}

func (m *mockProgressRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.LessonProgress, error) {
	return m.rows, nil
}

func (m *mockProgressRepo) Upsert(ctx context.Context, progress *models.LessonProgress) error {
	m.upserted = progress
	return nil
}

func (m *mockProgressRepo) CountCompleted(ctx context.Context, enrollmentID string) (int, error) {
	completed := 0
	for _, row := range m.rows {
		if row.Status == models.ProgressCompleted {
			completed++
		}
	}
	return completed, nil
}

type stubEnrollments struct {
	enrollment *models.Enrollment
}

func (s *stubEnrollments) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	if s.enrollment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return s.enrollment, nil
}

type stubLessonCounter struct {
	count int
}

func (s *stubLessonCounter) CountLessons(ctx context.Context, syllabusID string) (int, error) {
	return s.count, nil
}

func activeEnrollment() *models.Enrollment {
	return &models.Enrollment{
		ID:           "enrollment-1",
		StudentID:    "student-1",
		SyllabusID:   "syllabus-1",
		InstructorID: "instructor-user",
		Status:       models.EnrollmentActive,
	}
}

func TestUpdateProgressCompletionStampsSignOff(t *testing.T) {
	repo := &mockProgressRepo{}
	svc := NewProgressService(repo, &stubEnrollments{enrollment: activeEnrollment()}, &stubLessonCounter{}, nil, nil)

	progress, err := svc.Update(context.Background(), "enrollment-1", "instructor-user", models.RoleInstructor, UpdateProgressRequest{
		LessonID: testLessonID,
		Status:   "COMPLETED",
	})
	require.NoError(t, err)
	require.NotNil(t, progress.SignedOffBy)
	assert.Equal(t, "instructor-user", *progress.SignedOffBy)
	assert.NotNil(t, progress.SignedOffAt)
}

func TestUpdateProgressCompletionRequiresSignOff(t *testing.T) {
	svc := NewProgressService(&mockProgressRepo{}, &stubEnrollments{enrollment: activeEnrollment()}, &stubLessonCounter{}, nil, nil)

	_, err := svc.Update(context.Background(), "enrollment-1", "", models.RoleInstructor, UpdateProgressRequest{
		LessonID: testLessonID,
		Status:   "COMPLETED",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateProgressClearsSignOffWhenReopened(t *testing.T) {
	repo := &mockProgressRepo{}
	svc := NewProgressService(repo, &stubEnrollments{enrollment: activeEnrollment()}, &stubLessonCounter{}, nil, nil)

	progress, err := svc.Update(context.Background(), "enrollment-1", "instructor-user", models.RoleInstructor, UpdateProgressRequest{
		LessonID: testLessonID,
		Status:   "IN_PROGRESS",
	})
	require.NoError(t, err)
	assert.Nil(t, progress.SignedOffBy)
	assert.Nil(t, progress.SignedOffAt)
}

func TestUpdateProgressRejectsForeignInstructor(t *testing.T) {
	svc := NewProgressService(&mockProgressRepo{}, &stubEnrollments{enrollment: activeEnrollment()}, &stubLessonCounter{}, nil, nil)

	_, err := svc.Update(context.Background(), "enrollment-1", "other-instructor", models.RoleInstructor, UpdateProgressRequest{
		LessonID: testLessonID,
		Status:   "COMPLETED",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateProgressAdminMaySignOff(t *testing.T) {
	repo := &mockProgressRepo{}
	svc := NewProgressService(repo, &stubEnrollments{enrollment: activeEnrollment()}, &stubLessonCounter{}, nil, nil)

	progress, err := svc.Update(context.Background(), "enrollment-1", "admin-user", models.RoleAdmin, UpdateProgressRequest{
		LessonID: testLessonID,
		Status:   "COMPLETED",
	})
	require.NoError(t, err)
	require.NotNil(t, progress.SignedOffBy)
	assert.Equal(t, "admin-user", *progress.SignedOffBy)
}

func TestUpdateProgressRequiresActiveEnrollment(t *testing.T) {
	enrollment := activeEnrollment()
	enrollment.Status = models.EnrollmentWithdrawn
	svc := NewProgressService(&mockProgressRepo{}, &stubEnrollments{enrollment: enrollment}, &stubLessonCounter{}, nil, nil)

	_, err := svc.Update(context.Background(), "enrollment-1", "instructor-user", models.RoleInstructor, UpdateProgressRequest{
		LessonID: testLessonID,
		Status:   "IN_PROGRESS",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSummaryComputesPercentComplete(t *testing.T) {
	repo := &mockProgressRepo{rows: []models.LessonProgress{
		{LessonID: "lesson-1", Status: models.ProgressCompleted},
		{LessonID: "lesson-2", Status: models.ProgressCompleted},
		{LessonID: "lesson-3", Status: models.ProgressInProgress},
	}}
	svc := NewProgressService(repo, &stubEnrollments{enrollment: activeEnrollment()}, &stubLessonCounter{count: 8}, nil, nil)

	summary, err := svc.Summary(context.Background(), "enrollment-1")
	require.NoError(t, err)
	assert.Equal(t, 8, summary.TotalLessons)
	assert.Equal(t, 2, summary.CompletedLessons)
	assert.InDelta(t, 25.0, summary.PercentComplete, 0.001)
}
