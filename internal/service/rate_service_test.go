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

type mockRateRepo struct {
	active  *models.Rate
	created []models.Rate
	history []models.Rate

	findErr   error
	createErr error
}

func (m *mockRateRepo) FindActive(ctx context.Context, studentID, instructorID string) (*models.Rate, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func (m *mockRateRepo) Create(ctx context.Context, rate *models.Rate) error {
	if m.createErr != nil {
		return m.createErr
	}
	rate.ID = "rate-1"
	rate.Active = true
	m.created = append(m.created, *rate)
	return nil
}

func (m *mockRateRepo) ListByPair(ctx context.Context, studentID, instructorID string) ([]models.Rate, error) {
	return m.history, nil
}

func (m *mockRateRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Rate, error) {
	return m.history, nil
}

func TestResolveSubstitutesDefaultsWhenNoAgreement(t *testing.T) {
	svc := NewRateService(&mockRateRepo{}, 65, 45, nil, nil)

	resolved, err := svc.Resolve(context.Background(), "student-1", "instructor-1")
	require.NoError(t, err, "a missing agreement is a normal outcome, not an error")
	assert.True(t, resolved.Default)
	assert.Nil(t, resolved.RateID)
	assert.True(t, resolved.FlightRate.Equal(decimal.NewFromInt(65)))
	assert.True(t, resolved.GroundRate.Equal(decimal.NewFromInt(45)))
}

func TestResolveUsesActiveAgreement(t *testing.T) {
	repo := &mockRateRepo{active: &models.Rate{
		ID:         "rate-7",
		FlightRate: decimal.NewFromInt(80),
		GroundRate: decimal.NewFromInt(50),
	}}
	svc := NewRateService(repo, 65, 45, nil, nil)

	resolved, err := svc.Resolve(context.Background(), "student-1", "instructor-1")
	require.NoError(t, err)
	assert.False(t, resolved.Default)
	require.NotNil(t, resolved.RateID)
	assert.Equal(t, "rate-7", *resolved.RateID)
	assert.True(t, resolved.FlightRate.Equal(decimal.NewFromInt(80)))
}

func TestSetRateValidatesPayload(t *testing.T) {
	svc := NewRateService(&mockRateRepo{}, 65, 45, nil, nil)

	_, err := svc.Set(context.Background(), SetRateRequest{StudentID: "student-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Set(context.Background(), SetRateRequest{
		StudentID:    "student-1",
		InstructorID: "instructor-1",
		FlightRate:   -10,
		GroundRate:   45,
	})
	require.Error(t, err)
}

func TestSetRateParsesEffectiveDate(t *testing.T) {
	repo := &mockRateRepo{}
	svc := NewRateService(repo, 65, 45, nil, nil)

	rate, err := svc.Set(context.Background(), SetRateRequest{
		StudentID:     "student-1",
		InstructorID:  "instructor-1",
		FlightRate:    72.5,
		GroundRate:    48,
		EffectiveDate: "2026-09-01",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), rate.EffectiveDate)
	require.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].FlightRate.Equal(decimal.RequireFromString("72.5")))
}
