package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type mockSessionRepo struct {
	byID      *models.FlightSession
	created   *models.FlightSession
	conflicts int

	completeErr error
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.FlightSession, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.FlightSession, int, error) {
	return nil, 0, nil
}

func (m *mockSessionRepo) CountConflicts(ctx context.Context, aircraftID, instructorID string, start, end time.Time, excludeID string) (int, error) {
	return m.conflicts, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.FlightSession) error {
	session.ID = "session-1"
	m.created = session
	return nil
}

func (m *mockSessionRepo) Complete(ctx context.Context, id string, flightHours, groundHours float64, remarks *string, completedAt time.Time) error {
	return m.completeErr
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	m.byID.Status = status
	return nil
}

type stubFleet struct {
	aircraft *models.Aircraft
}

func (s *stubFleet) FindByID(ctx context.Context, id string) (*models.Aircraft, error) {
	if s.aircraft == nil {
		return nil, sql.ErrNoRows
	}
	return s.aircraft, nil
}

type stubBilling struct {
	session    *models.FlightSession
	computeErr error
}

func (s *stubBilling) ComputeSessionCost(ctx context.Context, session *models.FlightSession) (*models.SessionCost, error) {
	if s.computeErr != nil {
		return nil, s.computeErr
	}
	s.session = session
	return &models.SessionCost{SessionID: session.ID, Status: models.CostPending}, nil
}

func activeFleet() *stubFleet {
	return &stubFleet{aircraft: &models.Aircraft{
		ID:         "ac-1",
		TailNumber: "N12345",
		HourlyRate: decimal.NewFromInt(180),
		Status:     models.AircraftActive,
	}}
}

func scheduleRequest() ScheduleSessionRequest {
	return ScheduleSessionRequest{
		StudentID:      "student-1",
		InstructorID:   "instructor-1",
		AircraftID:     "ac-1",
		ScheduledStart: "2026-09-02T14:00:00Z",
		ScheduledEnd:   "2026-09-02T16:00:00Z",
	}
}

func TestScheduleBooksSession(t *testing.T) {
	repo := &mockSessionRepo{}
	svc := NewSessionService(repo, activeFleet(), &stubBilling{}, nil, nil)

	session, err := svc.Schedule(context.Background(), scheduleRequest())
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, session.Status)
	assert.Equal(t, time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC), session.ScheduledStart)
	require.NotNil(t, repo.created)
}

func TestScheduleRejectsDoubleBooking(t *testing.T) {
	repo := &mockSessionRepo{conflicts: 1}
	svc := NewSessionService(repo, activeFleet(), &stubBilling{}, nil, nil)

	_, err := svc.Schedule(context.Background(), scheduleRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestScheduleRejectsUnavailableAircraft(t *testing.T) {
	fleet := activeFleet()
	fleet.aircraft.Status = models.AircraftMaintenance
	svc := NewSessionService(&mockSessionRepo{}, fleet, &stubBilling{}, nil, nil)

	_, err := svc.Schedule(context.Background(), scheduleRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestScheduleRejectsBackwardsWindow(t *testing.T) {
	svc := NewSessionService(&mockSessionRepo{}, activeFleet(), &stubBilling{}, nil, nil)

	req := scheduleRequest()
	req.ScheduledEnd = "2026-09-02T13:00:00Z"
	_, err := svc.Schedule(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCompleteTriggersCostComputation(t *testing.T) {
	repo := &mockSessionRepo{byID: &models.FlightSession{
		ID:        "session-1",
		StudentID: "student-1",
		Status:    models.SessionScheduled,
	}}
	billing := &stubBilling{}
	svc := NewSessionService(repo, activeFleet(), billing, nil, nil)

	session, err := svc.Complete(context.Background(), "session-1", CompleteSessionRequest{FlightHours: 1.5, GroundHours: 0.5})
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, 1.5, session.FlightHours)
	require.NotNil(t, billing.session, "completion hands the session to billing")
	assert.Equal(t, models.SessionCompleted, billing.session.Status)
}

func TestCompleteSurvivesCostFailure(t *testing.T) {
	repo := &mockSessionRepo{byID: &models.FlightSession{ID: "session-1", Status: models.SessionScheduled}}
	billing := &stubBilling{computeErr: sql.ErrConnDone}
	svc := NewSessionService(repo, activeFleet(), billing, nil, nil)

	session, err := svc.Complete(context.Background(), "session-1", CompleteSessionRequest{FlightHours: 1})
	require.NoError(t, err, "the flight happened; the cost can be recomputed later")
	assert.Equal(t, models.SessionCompleted, session.Status)
}

func TestCompleteRequiresLoggedHours(t *testing.T) {
	svc := NewSessionService(&mockSessionRepo{}, activeFleet(), &stubBilling{}, nil, nil)

	_, err := svc.Complete(context.Background(), "session-1", CompleteSessionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCompleteOnlyScheduledSessions(t *testing.T) {
	repo := &mockSessionRepo{byID: &models.FlightSession{ID: "session-1", Status: models.SessionCancelled}}
	svc := NewSessionService(repo, activeFleet(), &stubBilling{}, nil, nil)

	_, err := svc.Complete(context.Background(), "session-1", CompleteSessionRequest{FlightHours: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatusTransition.Code, appErrors.FromError(err).Code)
}

func TestCancelOnlyScheduledSessions(t *testing.T) {
	repo := &mockSessionRepo{byID: &models.FlightSession{ID: "session-1", Status: models.SessionScheduled}}
	svc := NewSessionService(repo, activeFleet(), &stubBilling{}, nil, nil)

	session, err := svc.Cancel(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)

	_, err = svc.Cancel(context.Background(), "session-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatusTransition.Code, appErrors.FromError(err).Code)
}
