package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

const testInvoiceID = "7f2d3a90-1f0e-4f6b-9c2e-5a8d4b6c1e23"

type mockPaymentRepo struct {
	created *models.Payment
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = "payment-1"
	m.created = payment
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if m.created == nil {
		return nil, sql.ErrNoRows
	}
	return m.created, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	return nil, 0, nil
}

type stubLedger struct {
	studentID string
	amount    decimal.Decimal
	txType    models.TransactionType
	refType   *string
	refID     *string
	applyErr  error
}

func (s *stubLedger) Apply(ctx context.Context, studentID string, amount decimal.Decimal, txType models.TransactionType, description string, refType, refID *string) (*models.Transaction, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	s.studentID = studentID
	s.amount = amount
	s.txType = txType
	s.refType = refType
	s.refID = refID
	return &models.Transaction{StudentID: studentID, Type: txType, Amount: amount}, nil
}

type stubSettler struct {
	invoice     *models.Invoice
	paidID      string
	markPaidErr error
}

func (s *stubSettler) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	if s.invoice == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
	}
	return s.invoice, nil
}

func (s *stubSettler) markInvoicePaid(ctx context.Context, id string, paidDate time.Time) error {
	if s.markPaidErr != nil {
		return s.markPaidErr
	}
	s.paidID = id
	return nil
}

func TestRecordPaymentCreditsLedger(t *testing.T) {
	repo := &mockPaymentRepo{}
	ledger := &stubLedger{}
	svc := NewPaymentService(repo, ledger, &stubSettler{}, nil, nil)

	payment, _, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		Amount:    200,
		Method:    "CASH",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentCompleted, payment.Status)
	assert.Equal(t, "student-1", ledger.studentID)
	assert.Equal(t, models.TransactionCredit, ledger.txType)
	assert.True(t, ledger.amount.Equal(decimal.NewFromInt(200)))
	require.NotNil(t, ledger.refType)
	assert.Equal(t, models.ReferencePayment, *ledger.refType)
	require.NotNil(t, ledger.refID)
	assert.Equal(t, payment.ID, *ledger.refID)
}

func TestRecordFullPaymentSettlesInvoice(t *testing.T) {
	settler := &stubSettler{invoice: &models.Invoice{
		ID:          testInvoiceID,
		StudentID:   "student-1",
		Status:      models.InvoiceSent,
		TotalAmount: decimal.NewFromInt(350),
	}}
	svc := NewPaymentService(&mockPaymentRepo{}, &stubLedger{}, settler, nil, nil)

	invoiceID := testInvoiceID
	_, _, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		InvoiceID: &invoiceID,
		Amount:    350,
		Method:    "TRANSFER",
	})
	require.NoError(t, err)
	assert.Equal(t, testInvoiceID, settler.paidID)
}

func TestRecordFullPaymentSettlesDraftInvoice(t *testing.T) {
	// A freshly assembled invoice that was never sent is still payable.
	settler := &stubSettler{invoice: &models.Invoice{
		ID:          testInvoiceID,
		StudentID:   "student-1",
		Status:      models.InvoiceDraft,
		TotalAmount: decimal.NewFromInt(350),
	}}
	svc := NewPaymentService(&mockPaymentRepo{}, &stubLedger{}, settler, nil, nil)

	invoiceID := testInvoiceID
	_, warning, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		InvoiceID: &invoiceID,
		Amount:    350,
		Method:    "CASH",
	})
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, testInvoiceID, settler.paidID)
}

func TestRecordPartialPaymentLeavesInvoiceOpen(t *testing.T) {
	settler := &stubSettler{invoice: &models.Invoice{
		ID:          testInvoiceID,
		StudentID:   "student-1",
		Status:      models.InvoiceSent,
		TotalAmount: decimal.NewFromInt(350),
	}}
	svc := NewPaymentService(&mockPaymentRepo{}, &stubLedger{}, settler, nil, nil)

	invoiceID := testInvoiceID
	_, _, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		InvoiceID: &invoiceID,
		Amount:    100,
		Method:    "CARD",
	})
	require.NoError(t, err)
	assert.Empty(t, settler.paidID, "a partial payment must not settle the invoice")
}

func TestRecordPaymentRejectsForeignInvoice(t *testing.T) {
	settler := &stubSettler{invoice: &models.Invoice{
		ID:        testInvoiceID,
		StudentID: "someone-else",
		Status:    models.InvoiceSent,
	}}
	ledger := &stubLedger{}
	svc := NewPaymentService(&mockPaymentRepo{}, ledger, settler, nil, nil)

	invoiceID := testInvoiceID
	_, _, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		InvoiceID: &invoiceID,
		Amount:    350,
		Method:    "CASH",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, ledger.studentID, "no ledger credit for a rejected payment")
}

func TestRecordPaymentRejectsUnpayableInvoice(t *testing.T) {
	settler := &stubSettler{invoice: &models.Invoice{
		ID:        testInvoiceID,
		StudentID: "student-1",
		Status:    models.InvoiceCancelled,
	}}
	svc := NewPaymentService(&mockPaymentRepo{}, &stubLedger{}, settler, nil, nil)

	invoiceID := testInvoiceID
	_, _, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		InvoiceID: &invoiceID,
		Amount:    350,
		Method:    "CASH",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatusTransition.Code, appErrors.FromError(err).Code)
}

func TestRecordPaymentSettleFailureIsNotFatal(t *testing.T) {
	settler := &stubSettler{
		invoice: &models.Invoice{
			ID:          testInvoiceID,
			StudentID:   "student-1",
			Status:      models.InvoiceSent,
			TotalAmount: decimal.NewFromInt(350),
		},
		markPaidErr: sql.ErrConnDone,
	}
	svc := NewPaymentService(&mockPaymentRepo{}, &stubLedger{}, settler, nil, nil)

	invoiceID := testInvoiceID
	payment, warning, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		InvoiceID: &invoiceID,
		Amount:    350,
		Method:    "CASH",
	})
	require.NoError(t, err, "the ledger credit is the source of truth")
	assert.NotNil(t, payment)
	assert.NotEmpty(t, warning, "the caller is told the invoice was not settled")
}

func TestRecordPaymentValidatesMethod(t *testing.T) {
	svc := NewPaymentService(&mockPaymentRepo{}, &stubLedger{}, &stubSettler{}, nil, nil)

	_, _, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "student-1",
		Amount:    50,
		Method:    "BARTER",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
