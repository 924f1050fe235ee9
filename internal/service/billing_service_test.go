package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/repository"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type mockCostRepo struct {
	costBySession map[string]*models.SessionCost
	pending       []models.SessionCost
	upserted      *models.SessionCost
	paidInvoiceID string

	upsertErr   error
	markPaidErr error
}

func (m *mockCostRepo) Upsert(ctx context.Context, cost *models.SessionCost) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if cost.ID == "" {
		cost.ID = "cost-new"
	}
	m.upserted = cost
	return nil
}

func (m *mockCostRepo) FindBySession(ctx context.Context, sessionID string) (*models.SessionCost, error) {
	if cost, ok := m.costBySession[sessionID]; ok {
		return cost, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCostRepo) FindPendingBySessions(ctx context.Context, studentID string, sessionIDs []string) ([]models.SessionCost, error) {
	return m.pending, nil
}

func (m *mockCostRepo) List(ctx context.Context, filter models.SessionCostFilter) ([]models.SessionCost, error) {
	return m.pending, nil
}

func (m *mockCostRepo) MarkPaidByInvoice(ctx context.Context, invoiceID string) error {
	if m.markPaidErr != nil {
		return m.markPaidErr
	}
	m.paidInvoiceID = invoiceID
	return nil
}

type mockInvoiceRepo struct {
	byID    *models.Invoice
	created *models.Invoice
	items   []models.LineItem
	costIDs []string

	statusFrom models.InvoiceStatus
	statusTo   models.InvoiceStatus

	createErr error
	updateErr error
}

func (m *mockInvoiceRepo) CreateWithItems(ctx context.Context, invoice *models.Invoice, items []models.LineItem, costIDs []string) error {
	if m.createErr != nil {
		return m.createErr
	}
	invoice.ID = "invoice-1"
	m.created = invoice
	m.items = items
	m.costIDs = costIDs
	return nil
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	return nil, 0, nil
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, id string, from, to models.InvoiceStatus, paidDate *time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.statusFrom = from
	m.statusTo = to
	return nil
}

func (m *mockInvoiceRepo) OutstandingTotals(ctx context.Context) (int, decimal.Decimal, error) {
	return 0, decimal.Zero, nil
}

func (m *mockInvoiceRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	return 2, nil
}

type stubAircraftReader struct {
	aircraft *models.Aircraft
}

func (s *stubAircraftReader) FindByID(ctx context.Context, id string) (*models.Aircraft, error) {
	if s.aircraft == nil {
		return nil, sql.ErrNoRows
	}
	return s.aircraft, nil
}

type stubRateResolver struct {
	resolved *models.ResolvedRate
}

func (s *stubRateResolver) Resolve(ctx context.Context, studentID, instructorID string) (*models.ResolvedRate, error) {
	return s.resolved, nil
}

func newBillingFixture(costs *mockCostRepo, invoices *mockInvoiceRepo) *BillingService {
	aircraft := &stubAircraftReader{aircraft: &models.Aircraft{
		ID:         "ac-1",
		TailNumber: "N12345",
		HourlyRate: decimal.NewFromInt(180),
		Status:     models.AircraftActive,
	}}
	rates := &stubRateResolver{resolved: &models.ResolvedRate{
		FlightRate: decimal.NewFromInt(65),
		GroundRate: decimal.NewFromInt(45),
	}}
	return NewBillingService(costs, invoices, aircraft, rates, 10, 5, 14, nil, nil)
}

func completedSession() *models.FlightSession {
	return &models.FlightSession{
		ID:           "session-1",
		StudentID:    "student-1",
		InstructorID: "instructor-1",
		AircraftID:   "ac-1",
		Status:       models.SessionCompleted,
		FlightHours:  1.5,
		GroundHours:  0.5,
	}
}

func TestComputeSessionCostComponents(t *testing.T) {
	costs := &mockCostRepo{}
	svc := newBillingFixture(costs, &mockInvoiceRepo{})

	cost, err := svc.ComputeSessionCost(context.Background(), completedSession())
	require.NoError(t, err)

	// 1.5h flight, 0.5h ground: aircraft 180*1.5, instructor 65*1.5,
	// ground 45*0.5, fuel 10*1.5, flat fee 5.
	assert.True(t, cost.AircraftCost.Equal(decimal.NewFromInt(270)), "aircraft cost %s", cost.AircraftCost)
	assert.True(t, cost.InstructorCost.Equal(decimal.RequireFromString("97.5")), "instructor cost %s", cost.InstructorCost)
	assert.True(t, cost.GroundCost.Equal(decimal.RequireFromString("22.5")), "ground cost %s", cost.GroundCost)
	assert.True(t, cost.FuelCost.Equal(decimal.NewFromInt(15)), "fuel cost %s", cost.FuelCost)
	assert.True(t, cost.FeesCost.Equal(decimal.NewFromInt(5)), "fees cost %s", cost.FeesCost)
	assert.True(t, cost.TotalCost.Equal(decimal.NewFromInt(410)), "total %s", cost.TotalCost)
	assert.Equal(t, models.CostPending, cost.Status)
	require.NotNil(t, costs.upserted)
}

func TestComputeSessionCostRequiresCompletedSession(t *testing.T) {
	svc := newBillingFixture(&mockCostRepo{}, &mockInvoiceRepo{})
	session := completedSession()
	session.Status = models.SessionScheduled

	_, err := svc.ComputeSessionCost(context.Background(), session)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestComputeSessionCostOverwritesPendingRow(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	costs := &mockCostRepo{costBySession: map[string]*models.SessionCost{
		"session-1": {ID: "cost-old", SessionID: "session-1", Status: models.CostPending, CreatedAt: created},
	}}
	svc := newBillingFixture(costs, &mockInvoiceRepo{})

	cost, err := svc.ComputeSessionCost(context.Background(), completedSession())
	require.NoError(t, err)
	assert.Equal(t, "cost-old", cost.ID, "recomputation overwrites, never duplicates")
	assert.Equal(t, created, cost.CreatedAt)
}

func TestComputeSessionCostLeavesBilledRowAlone(t *testing.T) {
	costs := &mockCostRepo{costBySession: map[string]*models.SessionCost{
		"session-1": {ID: "cost-old", SessionID: "session-1", Status: models.CostBilled},
	}}
	svc := newBillingFixture(costs, &mockInvoiceRepo{})

	_, err := svc.ComputeSessionCost(context.Background(), completedSession())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatusTransition.Code, appErrors.FromError(err).Code)
	assert.Nil(t, costs.upserted)
}

func TestAssembleInvoiceTotalsLineItems(t *testing.T) {
	costs := &mockCostRepo{pending: []models.SessionCost{
		{ID: "cost-1", SessionID: "session-1", StudentID: "student-1", TotalCost: decimal.NewFromInt(200), Status: models.CostPending},
		{ID: "cost-2", SessionID: "session-2", StudentID: "student-1", TotalCost: decimal.NewFromInt(150), Status: models.CostPending},
	}}
	invoices := &mockInvoiceRepo{}
	svc := newBillingFixture(costs, invoices)

	invoice, err := svc.AssembleInvoice(context.Background(), AssembleInvoiceRequest{
		StudentID:  "student-1",
		SessionIDs: []string{"session-1", "session-2"},
	})
	require.NoError(t, err)

	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, models.InvoiceDraft, invoice.Status)
	assert.True(t, strings.HasPrefix(invoice.Number, "INV-"))
	require.Len(t, invoices.items, 2)
	assert.True(t, invoices.items[0].Amount.Equal(decimal.NewFromInt(200)))
	require.NotNil(t, invoices.items[0].SessionID)
	assert.Equal(t, "session-1", *invoices.items[0].SessionID)
	assert.Equal(t, []string{"cost-1", "cost-2"}, invoices.costIDs)
}

func TestAssembleInvoiceRejectsEmptyBatch(t *testing.T) {
	svc := newBillingFixture(&mockCostRepo{}, &mockInvoiceRepo{})

	_, err := svc.AssembleInvoice(context.Background(), AssembleInvoiceRequest{
		StudentID:  "student-1",
		SessionIDs: []string{"session-1"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "no unbilled sessions")
}

func TestAssembleInvoiceConcurrentBillingConflicts(t *testing.T) {
	costs := &mockCostRepo{pending: []models.SessionCost{
		{ID: "cost-1", SessionID: "session-1", TotalCost: decimal.NewFromInt(200), Status: models.CostPending},
	}}
	invoices := &mockInvoiceRepo{createErr: repository.ErrCostsAlreadyBilled}
	svc := newBillingFixture(costs, invoices)

	_, err := svc.AssembleInvoice(context.Background(), AssembleInvoiceRequest{
		StudentID:  "student-1",
		SessionIDs: []string{"session-1"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSendInvoiceFollowsStatusChain(t *testing.T) {
	invoices := &mockInvoiceRepo{byID: &models.Invoice{ID: "invoice-1", Status: models.InvoiceDraft}}
	svc := newBillingFixture(&mockCostRepo{}, invoices)

	invoice, err := svc.SendInvoice(context.Background(), "invoice-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, invoice.Status)
	assert.Equal(t, models.InvoiceDraft, invoices.statusFrom)

	// A paid invoice cannot be cancelled.
	invoices.byID = &models.Invoice{ID: "invoice-1", Status: models.InvoicePaid}
	_, err = svc.CancelInvoice(context.Background(), "invoice-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatusTransition.Code, appErrors.FromError(err).Code)
}

func TestMarkInvoicePaidFlipsCosts(t *testing.T) {
	costs := &mockCostRepo{}
	invoices := &mockInvoiceRepo{byID: &models.Invoice{ID: "invoice-1", Status: models.InvoiceSent, TotalAmount: decimal.NewFromInt(350)}}
	svc := newBillingFixture(costs, invoices)

	err := svc.markInvoicePaid(context.Background(), "invoice-1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, invoices.statusTo)
	assert.Equal(t, "invoice-1", costs.paidInvoiceID)
}

func TestMarkInvoicePaidAcceptsDraft(t *testing.T) {
	costs := &mockCostRepo{}
	invoices := &mockInvoiceRepo{byID: &models.Invoice{ID: "invoice-1", Status: models.InvoiceDraft, TotalAmount: decimal.NewFromInt(350)}}
	svc := newBillingFixture(costs, invoices)

	err := svc.markInvoicePaid(context.Background(), "invoice-1", time.Now().UTC())
	require.NoError(t, err, "an unsent invoice settles directly")
	assert.Equal(t, models.InvoicePaid, invoices.statusTo)
}

func TestMarkInvoicePaidSurvivesCostFlipFailure(t *testing.T) {
	costs := &mockCostRepo{markPaidErr: sql.ErrConnDone}
	invoices := &mockInvoiceRepo{byID: &models.Invoice{ID: "invoice-1", Status: models.InvoiceSent}}
	svc := newBillingFixture(costs, invoices)

	err := svc.markInvoicePaid(context.Background(), "invoice-1", time.Now().UTC())
	assert.NoError(t, err, "the invoice is settled even if the cost flip lags")
}

func TestSweepOverdueReportsCount(t *testing.T) {
	svc := newBillingFixture(&mockCostRepo{}, &mockInvoiceRepo{})

	flipped, err := svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), flipped)
}
