package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// ErrCostsAlreadyBilled indicates a concurrent assembler consumed one of the
// session costs between selection and update.
var ErrCostsAlreadyBilled = errors.New("session costs already billed")

// InvoiceRepository handles invoices and their line items.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = "id, number, student_id, total_amount, net_amount, tax_amount, discount_amount, status, due_date, paid_date, created_at, updated_at"

const lineItemColumns = "id, invoice_id, description, quantity, rate, amount, session_id, created_at"

// CreateWithItems writes the invoice, its line items, and flips the consumed
// session costs to BILLED inside one transaction. The cost update is guarded
// on PENDING status: if a concurrent assembler already billed any of the
// costs the transaction rolls back with ErrCostsAlreadyBilled, so a session
// can never be double-billed.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, invoice *models.Invoice, items []models.LineItem, costIDs []string) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invoice tx: %w", err)
	}

	const insertInvoice = `INSERT INTO invoices (id, number, student_id, total_amount, net_amount, tax_amount, discount_amount, status, due_date, paid_date, created_at, updated_at)
        VALUES (:id, :number, :student_id, :total_amount, :net_amount, :tax_amount, :discount_amount, :status, :due_date, :paid_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertInvoice, invoice); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert invoice: %w", err)
	}

	const insertItem = `INSERT INTO line_items (id, invoice_id, description, quantity, rate, amount, session_id, created_at)
        VALUES (:id, :invoice_id, :description, :quantity, :rate, :amount, :session_id, :created_at)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].InvoiceID = invoice.ID
		items[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertItem, items[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert line item: %w", err)
		}
	}

	placeholders := make([]string, len(costIDs))
	args := make([]interface{}, 0, len(costIDs)+3)
	args = append(args, models.CostBilled, invoice.ID, now)
	for i, id := range costIDs {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE session_costs SET status = $1, invoice_id = $2, updated_at = $3
        WHERE id IN (%s) AND status = 'PENDING'`, strings.Join(placeholders, ","))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("bill session costs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("bill session costs: %w", err)
	}
	if affected != int64(len(costIDs)) {
		tx.Rollback() //nolint:errcheck
		return ErrCostsAlreadyBilled
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invoice tx: %w", err)
	}
	invoice.LineItems = items
	return nil
}

// FindByID returns an invoice with its line items.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1 LIMIT 1", invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	itemQuery := fmt.Sprintf("SELECT %s FROM line_items WHERE invoice_id = $1 ORDER BY created_at ASC", lineItemColumns)
	if err := r.db.SelectContext(ctx, &invoice.LineItems, itemQuery, id); err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	return &invoice, nil
}

// List returns invoices matching the filter with the total count.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	base := " FROM invoices WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := "SELECT " + invoiceColumns + base +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// UpdateStatus moves an invoice between states, guarded on the current
// status so a stale caller cannot skip ahead in the chain.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, from, to models.InvoiceStatus, paidDate *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $1, paid_date = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		to, paidDate, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %s is no longer %s", id, from)
	}
	return nil
}

// OutstandingTotals returns the count and summed amount of invoices awaiting
// payment.
func (r *InvoiceRepository) OutstandingTotals(ctx context.Context) (int, decimal.Decimal, error) {
	row := struct {
		Count int             `db:"count"`
		Total decimal.Decimal `db:"total"`
	}{}
	err := r.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total
         FROM invoices WHERE status IN ($1, $2)`,
		models.InvoiceSent, models.InvoiceOverdue)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("outstanding invoice totals: %w", err)
	}
	return row.Count, row.Total, nil
}

// MarkOverdue flips every SENT invoice past its due date to OVERDUE and
// returns how many rows changed.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4`,
		models.InvoiceOverdue, time.Now().UTC(), models.InvoiceSent, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	return affected, nil
}
