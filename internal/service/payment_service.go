package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type paymentRepo interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

type ledgerApplier interface {
	Apply(ctx context.Context, studentID string, amount decimal.Decimal, txType models.TransactionType, description string, refType, refID *string) (*models.Transaction, error)
}

type invoiceSettler interface {
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	markInvoicePaid(ctx context.Context, id string, paidDate time.Time) error
}

// RecordPaymentRequest captures money received from a student.
type RecordPaymentRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	InvoiceID *string `json:"invoice_id" validate:"omitempty,uuid"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required,oneof=CASH CARD TRANSFER CHECK"`
	Reference string  `json:"reference" validate:"max=128"`
}

// PaymentService records payments, credits the ledger and settles invoices.
type PaymentService struct {
	payments paymentRepo
	ledger   ledgerApplier
	invoices invoiceSettler

	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(payments paymentRepo, ledger ledgerApplier, invoices invoiceSettler, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		payments:  payments,
		ledger:    ledger,
		invoices:  invoices,
		validator: validate,
		logger:    logger,
	}
}

// Record persists the payment, credits the student's ledger and, when the
// payment targets an invoice and covers its full total, marks that invoice
// paid. The ledger credit is the source of truth: if the invoice flip fails
// afterwards the money is still on the account, the failure is logged for
// reconciliation and a warning is returned to the caller instead of
// unwinding the credit.
func (s *PaymentService) Record(ctx context.Context, req RecordPaymentRequest) (*models.Payment, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	amount := decimal.NewFromFloat(req.Amount)

	var invoice *models.Invoice
	if req.InvoiceID != nil {
		var err error
		invoice, err = s.invoices.GetInvoice(ctx, *req.InvoiceID)
		if err != nil {
			return nil, "", err
		}
		if invoice.StudentID != req.StudentID {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, "invoice belongs to another student")
		}
		if !invoice.Status.CanTransitionTo(models.InvoicePaid) {
			return nil, "", appErrors.Clone(appErrors.ErrStatusTransition, "invoice is not payable")
		}
	}

	payment := &models.Payment{
		StudentID: req.StudentID,
		InvoiceID: req.InvoiceID,
		Amount:    amount,
		Method:    models.PaymentMethod(req.Method),
		Reference: req.Reference,
		Status:    models.PaymentCompleted,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	refType := models.ReferencePayment
	if _, err := s.ledger.Apply(ctx, req.StudentID, amount, models.TransactionCredit, "Payment received", &refType, &payment.ID); err != nil {
		return nil, "", err
	}

	var warning string
	if invoice != nil && amount.GreaterThanOrEqual(invoice.TotalAmount) {
		if err := s.invoices.markInvoicePaid(ctx, invoice.ID, time.Now().UTC()); err != nil {
			warning = "payment credited but invoice could not be marked paid"
			s.logger.Warn("payment credited but invoice not settled",
				zap.String("payment_id", payment.ID),
				zap.String("invoice_id", invoice.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", payment.StudentID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("method", string(payment.Method)))
	return payment, warning, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns payments matching the filter.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, paginationFor(filter.Page, filter.PageSize, total), nil
}
