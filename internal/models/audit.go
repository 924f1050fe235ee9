package models

import "time"

// Audit actions recorded in the trail. Billing actions exist alongside
// the account ones because rate and ledger changes must be attributable.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionRateChange     = "RATE_CHANGE"
	AuditActionAdjustment     = "BALANCE_ADJUSTMENT"
	AuditActionInvoiceCreate  = "INVOICE_CREATE"
	AuditActionInvoiceCancel  = "INVOICE_CANCEL"
	AuditActionPaymentRecord  = "PAYMENT_RECORD"
)

// AuditLog is one row of the audit trail. Old and new values hold JSON
// snapshots of whatever the action touched.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
