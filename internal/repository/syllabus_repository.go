package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// SyllabusRepository handles syllabi and their lessons.
type SyllabusRepository struct {
	db *sqlx.DB
}

// NewSyllabusRepository creates a new syllabus repository.
func NewSyllabusRepository(db *sqlx.DB) *SyllabusRepository {
	return &SyllabusRepository{db: db}
}

const syllabusColumns = "id, code, name, description, active, created_at, updated_at"

const lessonColumns = "id, syllabus_id, stage, sequence, title, objectives, min_flight_hours, min_ground_hours, created_at, updated_at"

// FindByID returns a syllabus with its lessons in stage/sequence order.
func (r *SyllabusRepository) FindByID(ctx context.Context, id string) (*models.Syllabus, error) {
	query := fmt.Sprintf("SELECT %s FROM syllabi WHERE id = $1 LIMIT 1", syllabusColumns)
	var syllabus models.Syllabus
	if err := r.db.GetContext(ctx, &syllabus, query, id); err != nil {
		return nil, err
	}
	lessonQuery := fmt.Sprintf("SELECT %s FROM lessons WHERE syllabus_id = $1 ORDER BY stage ASC, sequence ASC", lessonColumns)
	if err := r.db.SelectContext(ctx, &syllabus.Lessons, lessonQuery, id); err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	return &syllabus, nil
}

// List returns all syllabi, optionally restricted to active ones.
func (r *SyllabusRepository) List(ctx context.Context, activeOnly bool) ([]models.Syllabus, error) {
	query := fmt.Sprintf("SELECT %s FROM syllabi", syllabusColumns)
	var args []interface{}
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}
	query += " ORDER BY code ASC"
	var syllabi []models.Syllabus
	if err := r.db.SelectContext(ctx, &syllabi, query, args...); err != nil {
		return nil, fmt.Errorf("list syllabi: %w", err)
	}
	return syllabi, nil
}

// Create inserts a syllabus.
func (r *SyllabusRepository) Create(ctx context.Context, syllabus *models.Syllabus) error {
	if syllabus.ID == "" {
		syllabus.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	syllabus.CreatedAt = now
	syllabus.UpdatedAt = now
	const query = `INSERT INTO syllabi (id, code, name, description, active, created_at, updated_at)
        VALUES (:id, :code, :name, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, syllabus); err != nil {
		return fmt.Errorf("insert syllabus: %w", err)
	}
	return nil
}

// Update persists mutable syllabus fields.
func (r *SyllabusRepository) Update(ctx context.Context, syllabus *models.Syllabus) error {
	syllabus.UpdatedAt = time.Now().UTC()
	const query = `UPDATE syllabi SET name = :name, description = :description, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, syllabus)
	if err != nil {
		return fmt.Errorf("update syllabus: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update syllabus: no syllabus %s", syllabus.ID)
	}
	return nil
}

// FindLesson returns a single lesson.
func (r *SyllabusRepository) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1 LIMIT 1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListLessons returns the lessons of a syllabus in curriculum order.
func (r *SyllabusRepository) ListLessons(ctx context.Context, syllabusID string) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE syllabus_id = $1 ORDER BY stage ASC, sequence ASC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, syllabusID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// CreateLesson inserts a lesson under a syllabus.
func (r *SyllabusRepository) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	const query = `INSERT INTO lessons (id, syllabus_id, stage, sequence, title, objectives, min_flight_hours, min_ground_hours, created_at, updated_at)
        VALUES (:id, :syllabus_id, :stage, :sequence, :title, :objectives, :min_flight_hours, :min_ground_hours, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

// UpdateLesson persists mutable lesson fields.
func (r *SyllabusRepository) UpdateLesson(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET stage = :stage, sequence = :sequence, title = :title, objectives = :objectives,
        min_flight_hours = :min_flight_hours, min_ground_hours = :min_ground_hours, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, lesson)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update lesson: no lesson %s", lesson.ID)
	}
	return nil
}

// CountLessons returns how many lessons a syllabus contains.
func (r *SyllabusRepository) CountLessons(ctx context.Context, syllabusID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM lessons WHERE syllabus_id = $1", syllabusID); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}
