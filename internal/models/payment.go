package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCheck    PaymentMethod = "CHECK"
)

// PaymentStatus tracks the settlement state of a recorded payment.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment records money received from a student, optionally settling an
// invoice.
type Payment struct {
	ID        string          `db:"id" json:"id"`
	StudentID string          `db:"student_id" json:"student_id"`
	InvoiceID *string         `db:"invoice_id" json:"invoice_id,omitempty"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Method    PaymentMethod   `db:"method" json:"method"`
	Reference string          `db:"reference" json:"reference"`
	Status    PaymentStatus   `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	StudentID string
	InvoiceID string
	Page      int
	PageSize  int
}
