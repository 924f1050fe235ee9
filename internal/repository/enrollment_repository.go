package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// EnrollmentRepository handles enrollment persistence.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `e.id, e.student_id, e.syllabus_id, e.instructor_id, e.status, e.start_date, e.end_date,
        e.created_at, e.updated_at, u.full_name AS student_name, sy.name AS syllabus_name`

const enrollmentJoins = ` FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN users u ON u.id = st.user_id
        JOIN syllabi sy ON sy.id = e.syllabus_id`

// FindByID returns a single enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + enrollmentJoins + " WHERE e.id = $1 LIMIT 1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// HasActive reports whether the student already has an active enrollment in
// the syllabus.
func (r *EnrollmentRepository) HasActive(ctx context.Context, studentID, syllabusID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND syllabus_id = $2 AND status = $3`,
		studentID, syllabusID, models.EnrollmentActive)
	if err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return count > 0, nil
}

// List returns enrollments matching the filter with the total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := enrollmentJoins + " WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND e.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.InstructorID != "" {
		base += fmt.Sprintf(" AND e.instructor_id = $%d", len(args)+1)
		args = append(args, filter.InstructorID)
	}
	if filter.SyllabusID != "" {
		base += fmt.Sprintf(" AND e.syllabus_id = $%d", len(args)+1)
		args = append(args, filter.SyllabusID)
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND e.status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := "SELECT " + enrollmentColumns + base +
		fmt.Sprintf(" ORDER BY e.start_date DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Create inserts an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentActive
	}
	const query = `INSERT INTO enrollments (id, student_id, syllabus_id, instructor_id, status, start_date, end_date, created_at, updated_at)
        VALUES (:id, :student_id, :syllabus_id, :instructor_id, :status, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// UpdateStatus moves an enrollment between lifecycle states.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, endDate *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET status = $1, end_date = $2, updated_at = $3 WHERE id = $4`,
		status, endDate, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update enrollment status: no enrollment %s", id)
	}
	return nil
}

// UpdateInstructor reassigns the primary instructor.
func (r *EnrollmentRepository) UpdateInstructor(ctx context.Context, id, instructorID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET instructor_id = $1, updated_at = $2 WHERE id = $3`,
		instructorID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update enrollment instructor: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update enrollment instructor: no enrollment %s", id)
	}
	return nil
}
