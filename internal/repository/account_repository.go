package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// ErrBalanceConflict indicates a concurrent writer changed the account
// balance between read and update. Callers may re-read and retry.
var ErrBalanceConflict = errors.New("account balance changed concurrently")

// AccountRepository handles billing accounts and their transaction ledger.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = "id, student_id, current_balance, credit_limit, low_balance_threshold, status, created_at, updated_at"

const transactionColumns = "id, account_id, student_id, type, amount, balance_after, description, reference_type, reference_id, created_at"

// FindByStudent returns the billing account for a student.
func (r *AccountRepository) FindByStudent(ctx context.Context, studentID string) (*models.Account, error) {
	query := fmt.Sprintf("SELECT %s FROM accounts WHERE student_id = $1 LIMIT 1", accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, studentID); err != nil {
		return nil, err
	}
	return &account, nil
}

// Create opens a billing account for a student.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Status == "" {
		account.Status = models.AccountActive
	}
	const query = `INSERT INTO accounts (id, student_id, current_balance, credit_limit, low_balance_threshold, status, created_at, updated_at)
        VALUES (:id, :student_id, :current_balance, :credit_limit, :low_balance_threshold, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateStatus changes the account lifecycle state.
func (r *AccountRepository) UpdateStatus(ctx context.Context, accountID string, status models.AccountStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update account status: no account %s", accountID)
	}
	return nil
}

// ApplyTransaction atomically moves the account balance and appends the
// ledger row. The balance update is a compare-and-swap against the balance
// the caller read; when another writer got there first the whole transaction
// rolls back with ErrBalanceConflict and no ledger row is written.
func (r *AccountRepository) ApplyTransaction(ctx context.Context, accountID string, expected, newBalance decimal.Decimal, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.AccountID = accountID
	txn.BalanceAfter = newBalance
	txn.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET current_balance = $1, updated_at = $2 WHERE id = $3 AND current_balance = $4`,
		newBalance, txn.CreatedAt, accountID, expected)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update balance: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return ErrBalanceConflict
	}
	const insert = `INSERT INTO transactions (id, account_id, student_id, type, amount, balance_after, description, reference_type, reference_id, created_at)
        VALUES (:id, :account_id, :student_id, :type, :amount, :balance_after, :description, :reference_type, :reference_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, txn); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("append transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// LatestTransaction returns the newest ledger row for a student.
func (r *AccountRepository) LatestTransaction(ctx context.Context, studentID string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`, transactionColumns)
	var txn models.Transaction
	if err := r.db.GetContext(ctx, &txn, query, studentID); err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListTransactions returns ledger rows matching the filter, newest first,
// with the total count for pagination.
func (r *AccountRepository) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	base := " FROM transactions WHERE student_id = $1"
	args := []interface{}{filter.StudentID}
	if filter.Type != nil {
		base += fmt.Sprintf(" AND type = $%d", len(args)+1)
		args = append(args, *filter.Type)
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", len(args)+1)
		args = append(args, *filter.To)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := "SELECT " + transactionColumns + base +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	var txns []models.Transaction
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return txns, total, nil
}

// CountBelowThreshold reports how many active accounts sit under their
// low-balance threshold.
func (r *AccountRepository) CountBelowThreshold(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM accounts WHERE status = $1 AND current_balance < low_balance_threshold`,
		models.AccountActive)
	if err != nil {
		return 0, fmt.Errorf("count low balance accounts: %w", err)
	}
	return count, nil
}
