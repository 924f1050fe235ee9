package models

import "time"

// Syllabus is an approved training course (e.g. Private Pilot, Instrument).
type Syllabus struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	Lessons     []Lesson  `json:"lessons,omitempty"`
}

// Lesson is one ordered unit of a syllabus.
type Lesson struct {
	ID             string    `db:"id" json:"id"`
	SyllabusID     string    `db:"syllabus_id" json:"syllabus_id"`
	Stage          int       `db:"stage" json:"stage"`
	Sequence       int       `db:"sequence" json:"sequence"`
	Title          string    `db:"title" json:"title"`
	Objectives     *string   `db:"objectives" json:"objectives,omitempty"`
	MinFlightHours float64   `db:"min_flight_hours" json:"min_flight_hours"`
	MinGroundHours float64   `db:"min_ground_hours" json:"min_ground_hours"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
