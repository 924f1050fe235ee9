package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/repository"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type mockAccountRepo struct {
	account   *models.Account
	txns      []models.Transaction
	conflicts int

	createErr error
	listErr   error
}

func (m *mockAccountRepo) FindByStudent(ctx context.Context, studentID string) (*models.Account, error) {
	if m.account == nil {
		return nil, sql.ErrNoRows
	}
	return m.account, nil
}

func (m *mockAccountRepo) Create(ctx context.Context, account *models.Account) error {
	if m.createErr != nil {
		return m.createErr
	}
	account.ID = "acct-1"
	m.account = account
	return nil
}

func (m *mockAccountRepo) UpdateStatus(ctx context.Context, accountID string, status models.AccountStatus) error {
	m.account.Status = status
	return nil
}

func (m *mockAccountRepo) ApplyTransaction(ctx context.Context, accountID string, expected, newBalance decimal.Decimal, txn *models.Transaction) error {
	if m.conflicts > 0 {
		m.conflicts--
		return repository.ErrBalanceConflict
	}
	if !m.account.CurrentBalance.Equal(expected) {
		return repository.ErrBalanceConflict
	}
	m.account.CurrentBalance = newBalance
	txn.AccountID = accountID
	txn.BalanceAfter = newBalance
	m.txns = append(m.txns, *txn)
	return nil
}

func (m *mockAccountRepo) LatestTransaction(ctx context.Context, studentID string) (*models.Transaction, error) {
	if len(m.txns) == 0 {
		return nil, sql.ErrNoRows
	}
	return &m.txns[len(m.txns)-1], nil
}

func (m *mockAccountRepo) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.txns, len(m.txns), nil
}

func (m *mockAccountRepo) CountBelowThreshold(ctx context.Context) (int, error) {
	return 0, nil
}

func activeAccount(balance string) *models.Account {
	return &models.Account{
		ID:             "acct-1",
		StudentID:      "student-1",
		CurrentBalance: decimal.RequireFromString(balance),
		Status:         models.AccountActive,
	}
}

func TestLedgerApplyDebitThenCredit(t *testing.T) {
	repo := &mockAccountRepo{}
	svc := NewLedgerService(repo, 100, 3, nil, nil)
	ctx := context.Background()

	// Account does not exist yet; the first Apply opens it at zero.
	debit, err := svc.Apply(ctx, "student-1", decimal.NewFromInt(150), models.TransactionDebit, "Invoice billed", nil, nil)
	require.NoError(t, err)
	assert.True(t, debit.Amount.Equal(decimal.NewFromInt(150)), "ledger amounts stay positive")
	assert.True(t, debit.BalanceAfter.Equal(decimal.NewFromInt(-150)))
	assert.True(t, repo.account.CurrentBalance.Equal(decimal.NewFromInt(-150)))

	credit, err := svc.Apply(ctx, "student-1", decimal.NewFromInt(150), models.TransactionCredit, "Payment received", nil, nil)
	require.NoError(t, err)
	assert.True(t, credit.BalanceAfter.IsZero())
	assert.True(t, repo.account.CurrentBalance.IsZero())
	assert.Len(t, repo.txns, 2)
}

func TestLedgerApplyRetriesOnBalanceConflict(t *testing.T) {
	repo := &mockAccountRepo{account: activeAccount("500"), conflicts: 2}
	svc := NewLedgerService(repo, 100, 3, nil, nil)

	txn, err := svc.Apply(context.Background(), "student-1", decimal.NewFromInt(50), models.TransactionDebit, "Adjustment", nil, nil)
	require.NoError(t, err)
	assert.True(t, txn.BalanceAfter.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, 0, repo.conflicts, "all conflicting attempts were consumed")
}

func TestLedgerApplyGivesUpAfterRetryLimit(t *testing.T) {
	repo := &mockAccountRepo{account: activeAccount("500"), conflicts: 10}
	svc := NewLedgerService(repo, 100, 3, nil, nil)

	_, err := svc.Apply(context.Background(), "student-1", decimal.NewFromInt(50), models.TransactionDebit, "Adjustment", nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.txns)
}

func TestLedgerApplyRejectsSuspendedAccount(t *testing.T) {
	account := activeAccount("0")
	account.Status = models.AccountSuspended
	repo := &mockAccountRepo{account: account}
	svc := NewLedgerService(repo, 100, 3, nil, nil)

	_, err := svc.Apply(context.Background(), "student-1", decimal.NewFromInt(10), models.TransactionCredit, "Payment", nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccountSuspended.Code, appErrors.FromError(err).Code)
}

func TestLedgerApplyRejectsNonPositiveAmount(t *testing.T) {
	svc := NewLedgerService(&mockAccountRepo{account: activeAccount("0")}, 100, 3, nil, nil)

	_, err := svc.Apply(context.Background(), "student-1", decimal.Zero, models.TransactionCredit, "Payment", nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Apply(context.Background(), "student-1", decimal.NewFromInt(-5), models.TransactionDebit, "Payment", nil, nil)
	require.Error(t, err)
}

func TestLedgerAdjustMapsDirection(t *testing.T) {
	repo := &mockAccountRepo{account: activeAccount("100")}
	svc := NewLedgerService(repo, 100, 3, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustmentRequest{StudentID: "student-1", Amount: 25, Direction: "DEBIT", Description: "Correction"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionDebit, repo.txns[0].Type)

	_, err = svc.Adjust(ctx, AdjustmentRequest{StudentID: "student-1", Amount: 25, Direction: "CREDIT", Description: "Correction"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionAdjustment, repo.txns[1].Type)
	assert.True(t, repo.account.CurrentBalance.Equal(decimal.NewFromInt(100)))

	_, err = svc.Adjust(ctx, AdjustmentRequest{StudentID: "student-1", Amount: 40, Direction: "REFUND", Description: "Returned deposit"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRefund, repo.txns[2].Type)
	assert.True(t, repo.account.CurrentBalance.Equal(decimal.NewFromInt(140)), "refund credits the account")
}

func TestLedgerAdjustValidatesPayload(t *testing.T) {
	svc := NewLedgerService(&mockAccountRepo{account: activeAccount("0")}, 100, 3, nil, nil)

	_, err := svc.Adjust(context.Background(), AdjustmentRequest{StudentID: "student-1", Amount: 25, Direction: "SIDEWAYS", Description: "Correction"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLedgerGetAccountOpensLazily(t *testing.T) {
	repo := &mockAccountRepo{}
	svc := NewLedgerService(repo, 200, 3, nil, nil)

	account, err := svc.GetAccount(context.Background(), "student-9")
	require.NoError(t, err)
	assert.Equal(t, "student-9", account.StudentID)
	assert.True(t, account.CurrentBalance.IsZero())
	assert.True(t, account.LowBalanceThreshold.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, models.AccountActive, account.Status)
}
