package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// ProgressRepository handles lesson progress persistence.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `p.id, p.enrollment_id, p.lesson_id, p.status, p.score, p.signed_off_by, p.signed_off_at,
        p.notes, p.created_at, p.updated_at, l.title AS lesson_title`

// FindByID returns a single progress row.
func (r *ProgressRepository) FindByID(ctx context.Context, id string) (*models.LessonProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM lesson_progress p JOIN lessons l ON l.id = p.lesson_id WHERE p.id = $1 LIMIT 1`, progressColumns)
	var progress models.LessonProgress
	if err := r.db.GetContext(ctx, &progress, query, id); err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListByEnrollment returns every progress row for an enrollment in
// curriculum order.
func (r *ProgressRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.LessonProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM lesson_progress p JOIN lessons l ON l.id = p.lesson_id
        WHERE p.enrollment_id = $1 ORDER BY l.stage ASC, l.sequence ASC`, progressColumns)
	var rows []models.LessonProgress
	if err := r.db.SelectContext(ctx, &rows, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	return rows, nil
}

// Upsert inserts or updates a progress row keyed on (enrollment, lesson).
func (r *ProgressRepository) Upsert(ctx context.Context, progress *models.LessonProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if progress.CreatedAt.IsZero() {
		progress.CreatedAt = now
	}
	progress.UpdatedAt = now
	const query = `INSERT INTO lesson_progress (id, enrollment_id, lesson_id, status, score, signed_off_by, signed_off_at, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :lesson_id, :status, :score, :signed_off_by, :signed_off_at, :notes, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
            status = EXCLUDED.status,
            score = EXCLUDED.score,
            signed_off_by = EXCLUDED.signed_off_by,
            signed_off_at = EXCLUDED.signed_off_at,
            notes = EXCLUDED.notes,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, progress); err != nil {
		return fmt.Errorf("upsert lesson progress: %w", err)
	}
	return nil
}

// CountCompleted returns how many lessons the enrollment has completed.
func (r *ProgressRepository) CountCompleted(ctx context.Context, enrollmentID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id = $1 AND status = $2`,
		enrollmentID, models.ProgressCompleted)
	if err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}
	return count, nil
}
