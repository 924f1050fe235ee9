package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

const (
	testStudentUUID    = "a1b2c3d4-0001-4000-8000-000000000001"
	testSyllabusUUID   = "a1b2c3d4-0002-4000-8000-000000000002"
	testInstructorUUID = "a1b2c3d4-0003-4000-8000-000000000003"
)

type mockEnrollmentRepo struct {
	byID      *models.Enrollment
	created   *models.Enrollment
	hasActive bool

	newInstructor string
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockEnrollmentRepo) HasActive(ctx context.Context, studentID, syllabusID string) (bool, error) {
	return m.hasActive, nil
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enrollment-1"
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, endDate *time.Time) error {
	m.byID.Status = status
	m.byID.EndDate = endDate
	return nil
}

func (m *mockEnrollmentRepo) UpdateInstructor(ctx context.Context, id, instructorID string) error {
	m.newInstructor = instructorID
	return nil
}

func enrollRequest() EnrollRequest {
	return EnrollRequest{
		StudentID:    testStudentUUID,
		SyllabusID:   testSyllabusUUID,
		InstructorID: testInstructorUUID,
	}
}

func TestEnrollCreatesActiveEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), enrollRequest())
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, enrollment.Status)
	assert.False(t, enrollment.StartDate.IsZero())
	require.NotNil(t, repo.created)
}

func TestEnrollRejectsSecondActiveEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{hasActive: true}
	svc := NewEnrollmentService(repo, nil, nil)

	_, err := svc.Enroll(context.Background(), enrollRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestCompleteClosesEnrollmentWithEndDate(t *testing.T) {
	repo := &mockEnrollmentRepo{byID: &models.Enrollment{ID: "enrollment-1", Status: models.EnrollmentActive}}
	svc := NewEnrollmentService(repo, nil, nil)

	enrollment, err := svc.Complete(context.Background(), "enrollment-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, enrollment.Status)
	assert.NotNil(t, enrollment.EndDate)

	// Closed enrollments stay closed.
	_, err = svc.Withdraw(context.Background(), "enrollment-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatusTransition.Code, appErrors.FromError(err).Code)
}

func TestReassignInstructorOnlyWhenActive(t *testing.T) {
	repo := &mockEnrollmentRepo{byID: &models.Enrollment{ID: "enrollment-1", Status: models.EnrollmentActive, InstructorID: testInstructorUUID}}
	svc := NewEnrollmentService(repo, nil, nil)

	enrollment, err := svc.ReassignInstructor(context.Background(), "enrollment-1", "a1b2c3d4-0004-4000-8000-000000000004")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4-0004-4000-8000-000000000004", enrollment.InstructorID)
	assert.Equal(t, "a1b2c3d4-0004-4000-8000-000000000004", repo.newInstructor)

	repo.byID.Status = models.EnrollmentWithdrawn
	_, err = svc.ReassignInstructor(context.Background(), "enrollment-1", testInstructorUUID)
	require.Error(t, err)
}
