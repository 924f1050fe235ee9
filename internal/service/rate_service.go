package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type rateRepo interface {
	FindActive(ctx context.Context, studentID, instructorID string) (*models.Rate, error)
	Create(ctx context.Context, rate *models.Rate) error
	ListByPair(ctx context.Context, studentID, instructorID string) ([]models.Rate, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Rate, error)
}

// SetRateRequest creates a new rate agreement, superseding the current one.
type SetRateRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	InstructorID  string  `json:"instructor_id" validate:"required"`
	FlightRate    float64 `json:"flight_rate" validate:"required,gt=0"`
	GroundRate    float64 `json:"ground_rate" validate:"required,gt=0"`
	EffectiveDate string  `json:"effective_date" validate:"omitempty,datetime=2006-01-02"`
}

// RateService resolves and manages student/instructor rate agreements.
type RateService struct {
	rates         rateRepo
	defaultFlight decimal.Decimal
	defaultGround decimal.Decimal
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewRateService constructs RateService. The default rates are substituted
// when a pair has no active agreement.
func NewRateService(rates rateRepo, defaultFlight, defaultGround float64, validate *validator.Validate, logger *zap.Logger) *RateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateService{
		rates:         rates,
		defaultFlight: decimal.NewFromFloat(defaultFlight),
		defaultGround: decimal.NewFromFloat(defaultGround),
		validator:     validate,
		logger:        logger,
	}
}

// Resolve returns the applicable rates for a student/instructor pair. A
// missing agreement is a normal outcome: the school defaults are substituted
// and the result is flagged accordingly. No error is raised for absence.
func (s *RateService) Resolve(ctx context.Context, studentID, instructorID string) (*models.ResolvedRate, error) {
	rate, err := s.rates.FindActive(ctx, studentID, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.ResolvedRate{
				FlightRate: s.defaultFlight,
				GroundRate: s.defaultGround,
				Default:    true,
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve rate")
	}
	return &models.ResolvedRate{
		FlightRate: rate.FlightRate,
		GroundRate: rate.GroundRate,
		RateID:     &rate.ID,
	}, nil
}

// Set creates a new agreement for the pair. The previous active rate is
// superseded, never deleted, so history remains intact.
func (s *RateService) Set(ctx context.Context, req SetRateRequest) (*models.Rate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rate payload")
	}

	effective := time.Now().UTC()
	if req.EffectiveDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid effective date")
		}
		effective = parsed
	}

	rate := &models.Rate{
		StudentID:     req.StudentID,
		InstructorID:  req.InstructorID,
		FlightRate:    decimal.NewFromFloat(req.FlightRate),
		GroundRate:    decimal.NewFromFloat(req.GroundRate),
		EffectiveDate: effective,
	}
	if err := s.rates.Create(ctx, rate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rate")
	}
	s.logger.Info("rate agreement created",
		zap.String("student_id", rate.StudentID),
		zap.String("instructor_id", rate.InstructorID),
		zap.String("flight_rate", rate.FlightRate.StringFixed(2)))
	return rate, nil
}

// History returns the full rate history for a pair, newest first.
func (s *RateService) History(ctx context.Context, studentID, instructorID string) ([]models.Rate, error) {
	rates, err := s.rates.ListByPair(ctx, studentID, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rate history")
	}
	return rates, nil
}

// ListForStudent returns the student's active agreements.
func (s *RateService) ListForStudent(ctx context.Context, studentID string) ([]models.Rate, error) {
	rates, err := s.rates.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student rates")
	}
	return rates, nil
}
