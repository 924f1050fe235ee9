package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/repository"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type accountRepo interface {
	FindByStudent(ctx context.Context, studentID string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	UpdateStatus(ctx context.Context, accountID string, status models.AccountStatus) error
	ApplyTransaction(ctx context.Context, accountID string, expected, newBalance decimal.Decimal, txn *models.Transaction) error
	LatestTransaction(ctx context.Context, studentID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
	CountBelowThreshold(ctx context.Context) (int, error)
}

// AdjustmentRequest is a manual balance correction outside session billing.
// REFUND credits the account like CREDIT but keeps its own transaction
// type so returned money stays distinguishable in the ledger.
type AdjustmentRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Direction   string  `json:"direction" validate:"required,oneof=CREDIT DEBIT REFUND"`
	Description string  `json:"description" validate:"required"`
}

// LedgerService owns balance mutations. Every balance change flows through
// Apply, which pairs the account update with an immutable transaction row so
// the ledger stays the source of truth for the balance.
type LedgerService struct {
	accounts     accountRepo
	lowThreshold decimal.Decimal
	maxRetries   int
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewLedgerService constructs LedgerService.
func NewLedgerService(accounts accountRepo, lowThreshold float64, maxRetries int, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &LedgerService{
		accounts:     accounts,
		lowThreshold: decimal.NewFromFloat(lowThreshold),
		maxRetries:   maxRetries,
		validator:    validate,
		logger:       logger,
	}
}

// Apply moves the student's balance by amount according to the transaction
// type (DEBIT subtracts, everything else adds; amount is stored positive) and
// appends the ledger row with the resulting balance snapshot. The two writes
// happen in one database transaction; a concurrent balance change is retried
// with a fresh read up to the configured limit.
func (s *LedgerService) Apply(ctx context.Context, studentID string, amount decimal.Decimal, txType models.TransactionType, description string, refType, refID *string) (*models.Transaction, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "transaction amount must be positive")
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		account, err := s.ensureAccount(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if account.Status != models.AccountActive {
			return nil, appErrors.Clone(appErrors.ErrAccountSuspended, "billing account is not active")
		}

		newBalance := account.CurrentBalance.Add(amount)
		if txType == models.TransactionDebit {
			newBalance = account.CurrentBalance.Sub(amount)
		}

		txn := &models.Transaction{
			StudentID:     studentID,
			Type:          txType,
			Amount:        amount,
			Description:   description,
			ReferenceType: refType,
			ReferenceID:   refID,
		}
		err = s.accounts.ApplyTransaction(ctx, account.ID, account.CurrentBalance, newBalance, txn)
		if err == nil {
			if newBalance.LessThan(account.LowBalanceThreshold) {
				s.logger.Warn("account below low-balance threshold",
					zap.String("student_id", studentID),
					zap.String("balance", newBalance.StringFixed(2)))
			}
			return txn, nil
		}
		if !errors.Is(err, repository.ErrBalanceConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transaction")
		}
		lastErr = err
		s.logger.Debug("balance conflict, retrying", zap.String("student_id", studentID), zap.Int("attempt", attempt+1))
	}
	return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "account balance is contended, retry the operation")
}

// Adjust records a manual correction (admin action).
func (s *LedgerService) Adjust(ctx context.Context, req AdjustmentRequest) (*models.Transaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adjustment payload")
	}
	txType := models.TransactionAdjustment
	switch req.Direction {
	case "DEBIT":
		txType = models.TransactionDebit
	case "REFUND":
		txType = models.TransactionRefund
	}
	return s.Apply(ctx, req.StudentID, decimal.NewFromFloat(req.Amount), txType, req.Description, nil, nil)
}

// GetAccount returns the student's billing account, opening one lazily.
func (s *LedgerService) GetAccount(ctx context.Context, studentID string) (*models.Account, error) {
	return s.ensureAccount(ctx, studentID)
}

// Transactions lists the ledger for a student.
func (s *LedgerService) Transactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, *models.Pagination, error) {
	txns, total, err := s.accounts.ListTransactions(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return txns, paginationFor(filter.Page, filter.PageSize, total), nil
}

// SetStatus changes the account lifecycle state (admin action).
func (s *LedgerService) SetStatus(ctx context.Context, studentID string, status models.AccountStatus) (*models.Account, error) {
	account, err := s.ensureAccount(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateStatus(ctx, account.ID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account status")
	}
	account.Status = status
	return account, nil
}

func (s *LedgerService) ensureAccount(ctx context.Context, studentID string) (*models.Account, error) {
	account, err := s.accounts.FindByStudent(ctx, studentID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	account = &models.Account{
		StudentID:           studentID,
		CurrentBalance:      decimal.Zero,
		CreditLimit:         decimal.Zero,
		LowBalanceThreshold: s.lowThreshold,
		Status:              models.AccountActive,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open account")
	}
	s.logger.Info("billing account opened", zap.String("student_id", studentID))
	return account, nil
}
