package models

import "time"

// Instructor is the flight-instructor profile attached to a user account.
type Instructor struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	CertificateNumber string     `db:"certificate_number" json:"certificate_number"`
	Ratings           string     `db:"ratings" json:"ratings"`
	HireDate          *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	Active            bool       `db:"active" json:"active"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	FullName          string     `db:"full_name" json:"full_name"`
	Email             string     `db:"email" json:"email"`
}

// Student is the student-pilot profile attached to a user account.
type Student struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	LicenceNumber  string     `db:"licence_number" json:"licence_number"`
	MedicalExpiry  *time.Time `db:"medical_expiry" json:"medical_expiry,omitempty"`
	SoloEndorsed   bool       `db:"solo_endorsed" json:"solo_endorsed"`
	EnrollmentDate *time.Time `db:"enrollment_date" json:"enrollment_date,omitempty"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	FullName       string     `db:"full_name" json:"full_name"`
	Email          string     `db:"email" json:"email"`
}

// RosterFilter captures filtering criteria for instructor/student listings.
type RosterFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
