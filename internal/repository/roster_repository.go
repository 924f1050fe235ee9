package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// StudentRepository handles student profile persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.user_id, s.licence_number, s.medical_expiry, s.solo_endorsed, s.enrollment_date,
        s.active, s.created_at, s.updated_at, u.full_name, u.email`

// FindByID returns a student profile joined with the user account.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id WHERE s.id = $1 LIMIT 1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUser returns the student profile for a user account.
func (r *StudentRepository) FindByUser(ctx context.Context, userID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id WHERE s.user_id = $1 LIMIT 1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the filter with the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.RosterFilter) ([]models.Student, int, error) {
	base := " FROM students s JOIN users u ON u.id = s.user_id WHERE 1=1"
	var args []interface{}
	if filter.Active != nil {
		base += fmt.Sprintf(" AND s.active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (u.full_name ILIKE $%d OR u.email ILIKE $%d)", len(args)+1, len(args)+1)
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

	query := "SELECT " + studentColumns + base +
		fmt.Sprintf(" ORDER BY u.full_name ASC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Create inserts a student profile.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, licence_number, medical_expiry, solo_endorsed, enrollment_date, active, created_at, updated_at)
        VALUES (:id, :user_id, :licence_number, :medical_expiry, :solo_endorsed, :enrollment_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Update persists mutable student profile fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET licence_number = :licence_number, medical_expiry = :medical_expiry,
        solo_endorsed = :solo_endorsed, enrollment_date = :enrollment_date, active = :active, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update student: no student %s", student.ID)
	}
	return nil
}

// CountActive returns the number of active students.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM students WHERE active = true"); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}

// InstructorRepository handles instructor profile persistence.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository creates a new instructor repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

const instructorColumns = `i.id, i.user_id, i.certificate_number, i.ratings, i.hire_date, i.active,
        i.created_at, i.updated_at, u.full_name, u.email`

// FindByID returns an instructor profile joined with the user account.
func (r *InstructorRepository) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	query := fmt.Sprintf(`SELECT %s FROM instructors i JOIN users u ON u.id = i.user_id WHERE i.id = $1 LIMIT 1`, instructorColumns)
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// FindByUser returns the instructor profile for a user account.
func (r *InstructorRepository) FindByUser(ctx context.Context, userID string) (*models.Instructor, error) {
	query := fmt.Sprintf(`SELECT %s FROM instructors i JOIN users u ON u.id = i.user_id WHERE i.user_id = $1 LIMIT 1`, instructorColumns)
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, userID); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// List returns instructors matching the filter with the total count.
func (r *InstructorRepository) List(ctx context.Context, filter models.RosterFilter) ([]models.Instructor, int, error) {
	base := " FROM instructors i JOIN users u ON u.id = i.user_id WHERE 1=1"
	var args []interface{}
	if filter.Active != nil {
		base += fmt.Sprintf(" AND i.active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (u.full_name ILIKE $%d OR u.email ILIKE $%d)", len(args)+1, len(args)+1)
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

	query := "SELECT " + instructorColumns + base +
		fmt.Sprintf(" ORDER BY u.full_name ASC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}
	return instructors, total, nil
}

// Create inserts an instructor profile.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	instructor.CreatedAt = now
	instructor.UpdatedAt = now
	const query = `INSERT INTO instructors (id, user_id, certificate_number, ratings, hire_date, active, created_at, updated_at)
        VALUES (:id, :user_id, :certificate_number, :ratings, :hire_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("insert instructor: %w", err)
	}
	return nil
}

// Update persists mutable instructor profile fields.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructors SET certificate_number = :certificate_number, ratings = :ratings,
        hire_date = :hire_date, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, instructor)
	if err != nil {
		return fmt.Errorf("update instructor: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update instructor: no instructor %s", instructor.ID)
	}
	return nil
}

// CountActive returns the number of active instructors.
func (r *InstructorRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM instructors WHERE active = true"); err != nil {
		return 0, fmt.Errorf("count active instructors: %w", err)
	}
	return count, nil
}
