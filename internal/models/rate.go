package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the hourly price agreement for a student/instructor pair. Changing
// a rate supersedes the previous row instead of deleting it, so the full
// pricing history stays queryable.
type Rate struct {
	ID            string          `db:"id" json:"id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	InstructorID  string          `db:"instructor_id" json:"instructor_id"`
	FlightRate    decimal.Decimal `db:"flight_rate" json:"flight_rate"`
	GroundRate    decimal.Decimal `db:"ground_rate" json:"ground_rate"`
	EffectiveDate time.Time       `db:"effective_date" json:"effective_date"`
	Active        bool            `db:"active" json:"active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ResolvedRate is the pair of hourly prices used for a session cost
// computation, either from an active Rate row or from school-wide defaults.
type ResolvedRate struct {
	FlightRate decimal.Decimal `json:"flight_rate"`
	GroundRate decimal.Decimal `json:"ground_rate"`
	RateID     *string         `json:"rate_id,omitempty"`
	Default    bool            `json:"default"`
}
