package models

import "time"

// EnrollmentStatus enumerates enrollment lifecycle states.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Enrollment ties a student to a syllabus with an assigned primary
// instructor. Only one active enrollment per (student, syllabus) is allowed.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	SyllabusID   string           `db:"syllabus_id" json:"syllabus_id"`
	InstructorID string           `db:"instructor_id" json:"instructor_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	StartDate    time.Time        `db:"start_date" json:"start_date"`
	EndDate      *time.Time       `db:"end_date" json:"end_date,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
	StudentName  string           `db:"student_name" json:"student_name"`
	SyllabusName string           `db:"syllabus_name" json:"syllabus_name"`
}

// EnrollmentFilter narrows enrollment listings.
type EnrollmentFilter struct {
	StudentID    string
	InstructorID string
	SyllabusID   string
	Status       *EnrollmentStatus
	Page         int
	PageSize     int
}
