package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// RateRepository handles rate agreement persistence.
type RateRepository struct {
	db *sqlx.DB
}

// NewRateRepository creates a new rate repository.
func NewRateRepository(db *sqlx.DB) *RateRepository {
	return &RateRepository{db: db}
}

const rateColumns = "id, student_id, instructor_id, flight_rate, ground_rate, effective_date, active, created_at, updated_at"

// FindActive returns the newest active rate for a student/instructor pair.
// Returns sql.ErrNoRows when no agreement exists; callers treat that as a
// normal outcome, not a failure.
func (r *RateRepository) FindActive(ctx context.Context, studentID, instructorID string) (*models.Rate, error) {
	query := fmt.Sprintf(`SELECT %s FROM rates
        WHERE student_id = $1 AND instructor_id = $2 AND active = true
        ORDER BY effective_date DESC LIMIT 1`, rateColumns)
	var rate models.Rate
	if err := r.db.GetContext(ctx, &rate, query, studentID, instructorID); err != nil {
		return nil, err
	}
	return &rate, nil
}

// Create inserts a new rate and deactivates the previous active agreement for
// the pair in the same transaction, preserving superseded rows for history.
func (r *RateRepository) Create(ctx context.Context, rate *models.Rate) error {
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rate.CreatedAt = now
	rate.UpdatedAt = now
	rate.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rate tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE rates SET active = false, updated_at = $1 WHERE student_id = $2 AND instructor_id = $3 AND active = true`,
		now, rate.StudentID, rate.InstructorID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("supersede rate: %w", err)
	}
	const insert = `INSERT INTO rates (id, student_id, instructor_id, flight_rate, ground_rate, effective_date, active, created_at, updated_at)
        VALUES (:id, :student_id, :instructor_id, :flight_rate, :ground_rate, :effective_date, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, rate); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert rate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rate: %w", err)
	}
	return nil
}

// ListByPair returns the full rate history for a student/instructor pair,
// newest first.
func (r *RateRepository) ListByPair(ctx context.Context, studentID, instructorID string) ([]models.Rate, error) {
	query := fmt.Sprintf(`SELECT %s FROM rates
        WHERE student_id = $1 AND instructor_id = $2
        ORDER BY effective_date DESC, created_at DESC`, rateColumns)
	var rates []models.Rate
	if err := r.db.SelectContext(ctx, &rates, query, studentID, instructorID); err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	return rates, nil
}

// ListByStudent returns all active agreements for a student.
func (r *RateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Rate, error) {
	query := fmt.Sprintf(`SELECT %s FROM rates
        WHERE student_id = $1 AND active = true
        ORDER BY effective_date DESC`, rateColumns)
	var rates []models.Rate
	if err := r.db.SelectContext(ctx, &rates, query, studentID); err != nil {
		return nil, fmt.Errorf("list student rates: %w", err)
	}
	return rates, nil
}
