package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type aircraftRepo interface {
	FindByID(ctx context.Context, id string) (*models.Aircraft, error)
	List(ctx context.Context, filter models.AircraftFilter) ([]models.Aircraft, int, error)
	Create(ctx context.Context, aircraft *models.Aircraft) error
	Update(ctx context.Context, aircraft *models.Aircraft) error
}

// AircraftRequest creates or updates a fleet aircraft.
type AircraftRequest struct {
	TailNumber string  `json:"tail_number" validate:"required,max=16"`
	Model      string  `json:"model" validate:"required,max=64"`
	Category   string  `json:"category" validate:"required,max=32"`
	HourlyRate float64 `json:"hourly_rate" validate:"required,gt=0"`
	Status     string  `json:"status" validate:"omitempty,oneof=ACTIVE MAINTENANCE RETIRED"`
}

// AircraftService manages the fleet.
type AircraftService struct {
	fleet     aircraftRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAircraftService constructs AircraftService.
func NewAircraftService(fleet aircraftRepo, validate *validator.Validate, logger *zap.Logger) *AircraftService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AircraftService{fleet: fleet, validator: validate, logger: logger}
}

// Create registers a new aircraft.
func (s *AircraftService) Create(ctx context.Context, req AircraftRequest) (*models.Aircraft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid aircraft payload")
	}
	status := models.AircraftActive
	if req.Status != "" {
		status = models.AircraftStatus(req.Status)
	}
	aircraft := &models.Aircraft{
		TailNumber: req.TailNumber,
		Model:      req.Model,
		Category:   req.Category,
		HourlyRate: decimal.NewFromFloat(req.HourlyRate),
		Status:     status,
	}
	if err := s.fleet.Create(ctx, aircraft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create aircraft")
	}
	s.logger.Info("aircraft registered", zap.String("aircraft_id", aircraft.ID), zap.String("tail_number", aircraft.TailNumber))
	return aircraft, nil
}

// Get returns one aircraft.
func (s *AircraftService) Get(ctx context.Context, id string) (*models.Aircraft, error) {
	aircraft, err := s.fleet.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "aircraft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load aircraft")
	}
	return aircraft, nil
}

// List returns aircraft matching the filter.
func (s *AircraftService) List(ctx context.Context, filter models.AircraftFilter) ([]models.Aircraft, *models.Pagination, error) {
	aircraft, total, err := s.fleet.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list aircraft")
	}
	return aircraft, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Update replaces the mutable fields of an aircraft. A rate change only
// affects sessions costed after the change; persisted session costs keep
// the rate they were computed with.
func (s *AircraftService) Update(ctx context.Context, id string, req AircraftRequest) (*models.Aircraft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid aircraft payload")
	}
	aircraft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	aircraft.TailNumber = req.TailNumber
	aircraft.Model = req.Model
	aircraft.Category = req.Category
	aircraft.HourlyRate = decimal.NewFromFloat(req.HourlyRate)
	if req.Status != "" {
		aircraft.Status = models.AircraftStatus(req.Status)
	}
	if err := s.fleet.Update(ctx, aircraft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update aircraft")
	}
	return aircraft, nil
}
