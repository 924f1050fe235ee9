package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates the invoice lifecycle. The chain moves strictly
// forward (DRAFT -> SENT -> PAID, or to OVERDUE) except for cancellation.
// Payment may land on a draft that was never sent, so DRAFT settles
// directly to PAID as well.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceSent      InvoiceStatus = "SENT"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// Invoice aggregates one or more session costs into a billing document.
// TotalAmount must always equal the sum of the line item amounts.
type Invoice struct {
	ID             string          `db:"id" json:"id"`
	Number         string          `db:"number" json:"number"`
	StudentID      string          `db:"student_id" json:"student_id"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	NetAmount      decimal.Decimal `db:"net_amount" json:"net_amount"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Status         InvoiceStatus   `db:"status" json:"status"`
	DueDate        time.Time       `db:"due_date" json:"due_date"`
	PaidDate       *time.Time      `db:"paid_date" json:"paid_date,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	LineItems      []LineItem      `json:"line_items,omitempty"`
}

// LineItem is a single billed position on an invoice, usually backed by a
// flight session.
type LineItem struct {
	ID          string          `db:"id" json:"id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	Description string          `db:"description" json:"description"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	Rate        decimal.Decimal `db:"rate" json:"rate"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	SessionID   *string         `db:"session_id" json:"session_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	StudentID string
	Status    *InvoiceStatus
	Page      int
	PageSize  int
}

// CanTransitionTo reports whether the status chain permits moving to next.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	if next == InvoiceCancelled {
		return s == InvoiceDraft || s == InvoiceSent || s == InvoiceOverdue
	}
	switch s {
	case InvoiceDraft:
		return next == InvoiceSent || next == InvoicePaid
	case InvoiceSent:
		return next == InvoicePaid || next == InvoiceOverdue
	case InvoiceOverdue:
		return next == InvoicePaid
	default:
		return false
	}
}
