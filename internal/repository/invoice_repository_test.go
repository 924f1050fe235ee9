package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
)

func draftInvoice() *models.Invoice {
	return &models.Invoice{
		Number:      "INV-20260831-ABCD1234",
		StudentID:   "student-1",
		TotalAmount: decimal.NewFromInt(350),
		NetAmount:   decimal.NewFromInt(350),
		Status:      models.InvoiceDraft,
		DueDate:     time.Now().UTC().AddDate(0, 0, 14),
	}
}

func TestCreateWithItemsCommitsAtomically(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO line_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO line_items").WillReturnResult(sqlmock.NewResult(0, 1))
	// Both costs were still PENDING, so the guarded update flips both rows.
	mock.ExpectExec("UPDATE session_costs SET status").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	invoice := draftInvoice()
	items := []models.LineItem{
		{Description: "Flight session session-1", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(200), Amount: decimal.NewFromInt(200)},
		{Description: "Flight session session-2", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(150), Amount: decimal.NewFromInt(150)},
	}
	err := repo.CreateWithItems(context.Background(), invoice, items, []string{"cost-1", "cost-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, invoice.ID)
	require.Len(t, invoice.LineItems, 2)
	assert.Equal(t, invoice.ID, invoice.LineItems[0].InvoiceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithItemsRollsBackWhenCostsAlreadyBilled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO line_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO line_items").WillReturnResult(sqlmock.NewResult(0, 1))
	// A concurrent assembler consumed one of the costs: only one row flips.
	mock.ExpectExec("UPDATE session_costs SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	items := []models.LineItem{
		{Description: "Flight session session-1", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(200), Amount: decimal.NewFromInt(200)},
		{Description: "Flight session session-2", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(150), Amount: decimal.NewFromInt(150)},
	}
	err := repo.CreateWithItems(context.Background(), draftInvoice(), items, []string{"cost-1", "cost-2"})
	assert.ErrorIs(t, err, ErrCostsAlreadyBilled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithItemsRollsBackOnItemFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO line_items").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	items := []models.LineItem{
		{Description: "Flight session session-1", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(200), Amount: decimal.NewFromInt(200)},
	}
	err := repo.CreateWithItems(context.Background(), draftInvoice(), items, []string{"cost-1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOverdueFlipsSentInvoices(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectExec("UPDATE invoices SET status").WillReturnResult(sqlmock.NewResult(0, 3))

	flipped, err := repo.MarkOverdue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(3), flipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}
