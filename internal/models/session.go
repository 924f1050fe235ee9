package models

import "time"

// SessionStatus enumerates flight-session lifecycle states.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionNoShow    SessionStatus = "NO_SHOW"
)

// FlightSession is a scheduled (and later flown) training session binding a
// student, instructor and aircraft, optionally against a syllabus lesson.
type FlightSession struct {
	ID             string        `db:"id" json:"id"`
	StudentID      string        `db:"student_id" json:"student_id"`
	InstructorID   string        `db:"instructor_id" json:"instructor_id"`
	AircraftID     string        `db:"aircraft_id" json:"aircraft_id"`
	LessonID       *string       `db:"lesson_id" json:"lesson_id,omitempty"`
	ScheduledStart time.Time     `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time     `db:"scheduled_end" json:"scheduled_end"`
	Status         SessionStatus `db:"status" json:"status"`
	FlightHours    float64       `db:"flight_hours" json:"flight_hours"`
	GroundHours    float64       `db:"ground_hours" json:"ground_hours"`
	Remarks        *string       `db:"remarks" json:"remarks,omitempty"`
	CompletedAt    *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter narrows flight-session listings.
type SessionFilter struct {
	StudentID    string
	InstructorID string
	AircraftID   string
	Status       *SessionStatus
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}
