package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
)

func TestApplyTransactionCommitsBalanceAndLedgerRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET current_balance = $1, updated_at = $2 WHERE id = $3 AND current_balance = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn := &models.Transaction{
		StudentID:   "student-1",
		Type:        models.TransactionDebit,
		Amount:      decimal.NewFromInt(150),
		Description: "Invoice billed",
	}
	err := repo.ApplyTransaction(context.Background(), "acct-1", decimal.Zero, decimal.NewFromInt(-150), txn)
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, "acct-1", txn.AccountID)
	assert.True(t, txn.BalanceAfter.Equal(decimal.NewFromInt(-150)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransactionRollsBackOnStaleBalance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	// The compare-and-swap matched no row: another writer changed the balance.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET current_balance").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	txn := &models.Transaction{StudentID: "student-1", Type: models.TransactionCredit, Amount: decimal.NewFromInt(50)}
	err := repo.ApplyTransaction(context.Background(), "acct-1", decimal.NewFromInt(100), decimal.NewFromInt(150), txn)
	assert.ErrorIs(t, err, ErrBalanceConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransactionRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET current_balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	txn := &models.Transaction{StudentID: "student-1", Type: models.TransactionCredit, Amount: decimal.NewFromInt(50)}
	err := repo.ApplyTransaction(context.Background(), "acct-1", decimal.Zero, decimal.NewFromInt(50), txn)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBalanceConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactionsAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now().UTC()
	txType := models.TransactionDebit
	rows := sqlmock.NewRows([]string{"id", "account_id", "student_id", "type", "amount", "balance_after", "description", "reference_type", "reference_id", "created_at"}).
		AddRow("t1", "acct-1", "student-1", string(txType), "150", "-150", "Invoice billed", nil, nil, now)

	mock.ExpectQuery("SELECT id, account_id, student_id, type, amount, balance_after, description, reference_type, reference_id, created_at FROM transactions WHERE student_id").
		WithArgs("student-1", string(txType)).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions WHERE student_id`).
		WithArgs("student-1", string(txType)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	txns, total, err := repo.ListTransactions(context.Background(), models.TransactionFilter{StudentID: "student-1", Type: &txType})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.NewFromInt(150)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
