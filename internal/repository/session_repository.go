package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// SessionRepository handles flight session persistence.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, student_id, instructor_id, aircraft_id, lesson_id, scheduled_start, scheduled_end, status, flight_hours, ground_hours, remarks, completed_at, created_at, updated_at"

// FindByID returns a single flight session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.FlightSession, error) {
	query := fmt.Sprintf("SELECT %s FROM flight_sessions WHERE id = $1 LIMIT 1", sessionColumns)
	var session models.FlightSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns flight sessions matching the filter with the total count.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.FlightSession, int, error) {
	base := " FROM flight_sessions WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.InstructorID != "" {
		base += fmt.Sprintf(" AND instructor_id = $%d", len(args)+1)
		args = append(args, filter.InstructorID)
	}
	if filter.AircraftID != "" {
		base += fmt.Sprintf(" AND aircraft_id = $%d", len(args)+1)
		args = append(args, filter.AircraftID)
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND scheduled_start >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND scheduled_start <= $%d", len(args)+1)
		args = append(args, *filter.To)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := "SELECT " + sessionColumns + base +
		fmt.Sprintf(" ORDER BY scheduled_start DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var sessions []models.FlightSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// CountConflicts reports how many scheduled sessions overlap the given window
// for the aircraft or the instructor.
func (r *SessionRepository) CountConflicts(ctx context.Context, aircraftID, instructorID string, start, end time.Time, excludeID string) (int, error) {
	query := `SELECT COUNT(*) FROM flight_sessions
        WHERE status = $1 AND scheduled_start < $2 AND scheduled_end > $3
          AND (aircraft_id = $4 OR instructor_id = $5)`
	args := []interface{}{models.SessionScheduled, end, start, aircraftID, instructorID}
	if excludeID != "" {
		query += " AND id != $6"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count session conflicts: %w", err)
	}
	return count, nil
}

// Create inserts a flight session.
func (r *SessionRepository) Create(ctx context.Context, session *models.FlightSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionScheduled
	}
	const query = `INSERT INTO flight_sessions (id, student_id, instructor_id, aircraft_id, lesson_id, scheduled_start, scheduled_end, status, flight_hours, ground_hours, remarks, completed_at, created_at, updated_at)
        VALUES (:id, :student_id, :instructor_id, :aircraft_id, :lesson_id, :scheduled_start, :scheduled_end, :status, :flight_hours, :ground_hours, :remarks, :completed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Complete records logged hours and flips the session to COMPLETED. Guarded
// on SCHEDULED status so a session cannot be completed twice.
func (r *SessionRepository) Complete(ctx context.Context, id string, flightHours, groundHours float64, remarks *string, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE flight_sessions SET status = $1, flight_hours = $2, ground_hours = $3, remarks = $4, completed_at = $5, updated_at = $6
         WHERE id = $7 AND status = $8`,
		models.SessionCompleted, flightHours, groundHours, remarks, completedAt, time.Now().UTC(), id, models.SessionScheduled)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s is not scheduled", id)
	}
	return nil
}

// UpdateStatus moves a session to CANCELLED or NO_SHOW.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE flight_sessions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		status, time.Now().UTC(), id, models.SessionScheduled)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s is not scheduled", id)
	}
	return nil
}

// CountInRange returns the number of sessions scheduled inside a window.
func (r *SessionRepository) CountInRange(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM flight_sessions WHERE scheduled_start >= $1 AND scheduled_start < $2`,
		from, to)
	if err != nil {
		return 0, fmt.Errorf("count sessions in range: %w", err)
	}
	return count, nil
}
