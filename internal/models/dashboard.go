package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardSummary is the cached admin overview payload.
type DashboardSummary struct {
	ActiveStudents      int             `json:"active_students"`
	ActiveInstructors   int             `json:"active_instructors"`
	ActiveAircraft      int             `json:"active_aircraft"`
	SessionsToday       int             `json:"sessions_today"`
	OutstandingInvoices int             `json:"outstanding_invoices"`
	OutstandingAmount   decimal.Decimal `json:"outstanding_amount"`
	LowBalanceAccounts  int             `json:"low_balance_accounts"`
	GeneratedAt         time.Time       `json:"generated_at"`
}
