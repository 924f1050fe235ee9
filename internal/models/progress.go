package models

import "time"

// ProgressStatus enumerates lesson progress states.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "NOT_STARTED"
	ProgressInProgress ProgressStatus = "IN_PROGRESS"
	ProgressCompleted  ProgressStatus = "COMPLETED"
)

// LessonProgress tracks a student's advancement through one syllabus lesson
// within an enrollment. Completion requires an instructor sign-off.
type LessonProgress struct {
	ID           string         `db:"id" json:"id"`
	EnrollmentID string         `db:"enrollment_id" json:"enrollment_id"`
	LessonID     string         `db:"lesson_id" json:"lesson_id"`
	Status       ProgressStatus `db:"status" json:"status"`
	Score        *float64       `db:"score" json:"score,omitempty"`
	SignedOffBy  *string        `db:"signed_off_by" json:"signed_off_by,omitempty"`
	SignedOffAt  *time.Time     `db:"signed_off_at" json:"signed_off_at,omitempty"`
	Notes        *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	LessonTitle  string         `db:"lesson_title" json:"lesson_title"`
}

// EnrollmentProgress summarises completion across a syllabus.
type EnrollmentProgress struct {
	EnrollmentID     string           `json:"enrollment_id"`
	TotalLessons     int              `json:"total_lessons"`
	CompletedLessons int              `json:"completed_lessons"`
	PercentComplete  float64          `json:"percent_complete"`
	Lessons          []LessonProgress `json:"lessons"`
}
