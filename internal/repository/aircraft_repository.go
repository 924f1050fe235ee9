package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// AircraftRepository handles fleet persistence.
type AircraftRepository struct {
	db *sqlx.DB
}

// NewAircraftRepository creates a new aircraft repository.
func NewAircraftRepository(db *sqlx.DB) *AircraftRepository {
	return &AircraftRepository{db: db}
}

const aircraftColumns = "id, tail_number, model, category, hourly_rate, hobbs_time, status, created_at, updated_at"

// FindByID returns a single aircraft.
func (r *AircraftRepository) FindByID(ctx context.Context, id string) (*models.Aircraft, error) {
	query := fmt.Sprintf("SELECT %s FROM aircraft WHERE id = $1 LIMIT 1", aircraftColumns)
	var aircraft models.Aircraft
	if err := r.db.GetContext(ctx, &aircraft, query, id); err != nil {
		return nil, err
	}
	return &aircraft, nil
}

// List returns aircraft matching the filter with the total count.
func (r *AircraftRepository) List(ctx context.Context, filter models.AircraftFilter) ([]models.Aircraft, int, error) {
	base := " FROM aircraft WHERE 1=1"
	var args []interface{}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	if filter.Category != "" {
		base += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (tail_number ILIKE $%d OR model ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := "SELECT " + aircraftColumns + base +
		fmt.Sprintf(" ORDER BY tail_number ASC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var fleet []models.Aircraft
	if err := r.db.SelectContext(ctx, &fleet, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list aircraft: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count aircraft: %w", err)
	}
	return fleet, total, nil
}

// Create inserts a new aircraft.
func (r *AircraftRepository) Create(ctx context.Context, aircraft *models.Aircraft) error {
	if aircraft.ID == "" {
		aircraft.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	aircraft.CreatedAt = now
	aircraft.UpdatedAt = now
	if aircraft.Status == "" {
		aircraft.Status = models.AircraftActive
	}
	const query = `INSERT INTO aircraft (id, tail_number, model, category, hourly_rate, hobbs_time, status, created_at, updated_at)
        VALUES (:id, :tail_number, :model, :category, :hourly_rate, :hobbs_time, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, aircraft); err != nil {
		return fmt.Errorf("insert aircraft: %w", err)
	}
	return nil
}

// Update persists mutable aircraft fields.
func (r *AircraftRepository) Update(ctx context.Context, aircraft *models.Aircraft) error {
	aircraft.UpdatedAt = time.Now().UTC()
	const query = `UPDATE aircraft SET model = :model, category = :category, hourly_rate = :hourly_rate,
        hobbs_time = :hobbs_time, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, aircraft)
	if err != nil {
		return fmt.Errorf("update aircraft: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update aircraft: no aircraft %s", aircraft.ID)
	}
	return nil
}

// CountActive returns the number of active airframes.
func (r *AircraftRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM aircraft WHERE status = $1", models.AircraftActive); err != nil {
		return 0, fmt.Errorf("count active aircraft: %w", err)
	}
	return count, nil
}
