package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostStatus tracks the billing lifecycle of a session cost. Transitions are
// forward-only: PENDING -> BILLED -> PAID.
type CostStatus string

const (
	CostPending CostStatus = "PENDING"
	CostBilled  CostStatus = "BILLED"
	CostPaid    CostStatus = "PAID"
)

// SessionCost is the computed monetary cost of one completed flight session.
// It is derived once per session; recomputation overwrites the existing row
// rather than accumulating.
type SessionCost struct {
	ID             string          `db:"id" json:"id"`
	SessionID      string          `db:"session_id" json:"session_id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	AircraftCost   decimal.Decimal `db:"aircraft_cost" json:"aircraft_cost"`
	InstructorCost decimal.Decimal `db:"instructor_cost" json:"instructor_cost"`
	GroundCost     decimal.Decimal `db:"ground_cost" json:"ground_cost"`
	FuelCost       decimal.Decimal `db:"fuel_cost" json:"fuel_cost"`
	FeesCost       decimal.Decimal `db:"fees_cost" json:"fees_cost"`
	TotalCost      decimal.Decimal `db:"total_cost" json:"total_cost"`
	Status         CostStatus      `db:"status" json:"status"`
	InvoiceID      *string         `db:"invoice_id" json:"invoice_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// SessionCostFilter narrows session cost listings.
type SessionCostFilter struct {
	StudentID string
	Status    *CostStatus
	Page      int
	PageSize  int
}
