package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus enumerates billing account lifecycle states.
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountClosed    AccountStatus = "CLOSED"
)

// TransactionType encodes the direction of a ledger entry. Amounts are always
// stored positive; DEBIT subtracts from the balance, the rest add to it.
type TransactionType string

const (
	TransactionDebit      TransactionType = "DEBIT"
	TransactionCredit     TransactionType = "CREDIT"
	TransactionRefund     TransactionType = "REFUND"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

// Account is the billing account held per student. The balance is a cached
// projection of the transaction ledger: it must always equal the
// balance_after of the newest transaction for the student.
type Account struct {
	ID                  string          `db:"id" json:"id"`
	StudentID           string          `db:"student_id" json:"student_id"`
	CurrentBalance      decimal.Decimal `db:"current_balance" json:"current_balance"`
	CreditLimit         decimal.Decimal `db:"credit_limit" json:"credit_limit"`
	LowBalanceThreshold decimal.Decimal `db:"low_balance_threshold" json:"low_balance_threshold"`
	Status              AccountStatus   `db:"status" json:"status"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is one immutable ledger entry. Rows are append-only: they are
// never updated or deleted once written.
type Transaction struct {
	ID            string          `db:"id" json:"id"`
	AccountID     string          `db:"account_id" json:"account_id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	Type          TransactionType `db:"type" json:"type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description   string          `db:"description" json:"description"`
	ReferenceType *string         `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *string         `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Reference type constants for transaction provenance.
const (
	ReferencePayment = "PAYMENT"
	ReferenceInvoice = "INVOICE"
	ReferenceSession = "SESSION"
)

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	StudentID string
	Type      *TransactionType
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
