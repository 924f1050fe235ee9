package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/repository"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type sessionCostRepo interface {
	Upsert(ctx context.Context, cost *models.SessionCost) error
	FindBySession(ctx context.Context, sessionID string) (*models.SessionCost, error)
	FindPendingBySessions(ctx context.Context, studentID string, sessionIDs []string) ([]models.SessionCost, error)
	List(ctx context.Context, filter models.SessionCostFilter) ([]models.SessionCost, error)
	MarkPaidByInvoice(ctx context.Context, invoiceID string) error
}

type invoiceRepo interface {
	CreateWithItems(ctx context.Context, invoice *models.Invoice, items []models.LineItem, costIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.InvoiceStatus, paidDate *time.Time) error
	OutstandingTotals(ctx context.Context) (int, decimal.Decimal, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type aircraftReader interface {
	FindByID(ctx context.Context, id string) (*models.Aircraft, error)
}

type rateResolver interface {
	Resolve(ctx context.Context, studentID, instructorID string) (*models.ResolvedRate, error)
}

// AssembleInvoiceRequest batches pending session costs into one invoice.
type AssembleInvoiceRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	SessionIDs []string `json:"session_ids" validate:"required,min=1,dive,required"`
	DueDate    string   `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// BillingService computes session costs and assembles invoices.
type BillingService struct {
	costs    sessionCostRepo
	invoices invoiceRepo
	aircraft aircraftReader
	rates    rateResolver

	fuelSurcharge decimal.Decimal
	sessionFee    decimal.Decimal
	dueDays       int

	validator *validator.Validate
	logger    *zap.Logger
}

// NewBillingService constructs BillingService.
func NewBillingService(costs sessionCostRepo, invoices invoiceRepo, aircraft aircraftReader, rates rateResolver, fuelSurcharge, sessionFee float64, dueDays int, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dueDays < 1 {
		dueDays = 14
	}
	return &BillingService{
		costs:         costs,
		invoices:      invoices,
		aircraft:      aircraft,
		rates:         rates,
		fuelSurcharge: decimal.NewFromFloat(fuelSurcharge),
		sessionFee:    decimal.NewFromFloat(sessionFee),
		dueDays:       dueDays,
		validator:     validate,
		logger:        logger,
	}
}

// ComputeSessionCost derives the cost of a completed session from the
// resolved rates, the aircraft hourly rate and the school surcharges, and
// persists it as PENDING. Recomputation overwrites the pending row; it never
// accumulates, and billed or paid costs are left untouched.
func (s *BillingService) ComputeSessionCost(ctx context.Context, session *models.FlightSession) (*models.SessionCost, error) {
	if session.Status != models.SessionCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session is not completed")
	}

	existing, err := s.costs.FindBySession(ctx, session.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session cost")
	}
	if existing != nil && existing.Status != models.CostPending {
		return nil, appErrors.Clone(appErrors.ErrStatusTransition, "session cost is already billed")
	}

	resolved, err := s.rates.Resolve(ctx, session.StudentID, session.InstructorID)
	if err != nil {
		return nil, err
	}

	aircraft, err := s.aircraft.FindByID(ctx, session.AircraftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "aircraft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load aircraft")
	}

	flightHours := decimal.NewFromFloat(session.FlightHours)
	groundHours := decimal.NewFromFloat(session.GroundHours)

	cost := &models.SessionCost{
		SessionID:      session.ID,
		StudentID:      session.StudentID,
		AircraftCost:   aircraft.HourlyRate.Mul(flightHours).Round(2),
		InstructorCost: resolved.FlightRate.Mul(flightHours).Round(2),
		GroundCost:     resolved.GroundRate.Mul(groundHours).Round(2),
		FuelCost:       s.fuelSurcharge.Mul(flightHours).Round(2),
		FeesCost:       s.sessionFee,
		Status:         models.CostPending,
	}
	cost.TotalCost = cost.AircraftCost.
		Add(cost.InstructorCost).
		Add(cost.GroundCost).
		Add(cost.FuelCost).
		Add(cost.FeesCost)

	if existing != nil {
		cost.ID = existing.ID
		cost.CreatedAt = existing.CreatedAt
	}
	if err := s.costs.Upsert(ctx, cost); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session cost")
	}
	s.logger.Info("session cost computed",
		zap.String("session_id", session.ID),
		zap.String("student_id", session.StudentID),
		zap.String("total", cost.TotalCost.StringFixed(2)))
	return cost, nil
}

// ListSessionCosts returns costs matching the filter.
func (s *BillingService) ListSessionCosts(ctx context.Context, filter models.SessionCostFilter) ([]models.SessionCost, error) {
	costs, err := s.costs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list session costs")
	}
	return costs, nil
}

// AssembleInvoice gathers the student's pending costs restricted to the
// requested session ids into one DRAFT invoice with a line item per cost.
// Invoice creation, line items and the cost status flip are a single
// database transaction, so a failure cannot leave a dangling invoice with
// costs still pending, and a concurrent assembler cannot double-bill.
func (s *BillingService) AssembleInvoice(ctx context.Context, req AssembleInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}

	costs, err := s.costs.FindPendingBySessions(ctx, req.StudentID, req.SessionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session costs")
	}
	if len(costs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no unbilled sessions found")
	}

	dueDate := time.Now().UTC().AddDate(0, 0, s.dueDays)
	if req.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid due date")
		}
		dueDate = parsed
	}

	total := decimal.Zero
	items := make([]models.LineItem, 0, len(costs))
	costIDs := make([]string, 0, len(costs))
	for _, cost := range costs {
		sessionID := cost.SessionID
		items = append(items, models.LineItem{
			Description: fmt.Sprintf("Flight session %s", cost.SessionID),
			Quantity:    decimal.NewFromInt(1),
			Rate:        cost.TotalCost,
			Amount:      cost.TotalCost,
			SessionID:   &sessionID,
		})
		total = total.Add(cost.TotalCost)
		costIDs = append(costIDs, cost.ID)
	}

	invoice := &models.Invoice{
		Number:         newInvoiceNumber(),
		StudentID:      req.StudentID,
		TotalAmount:    total,
		NetAmount:      total,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		Status:         models.InvoiceDraft,
		DueDate:        dueDate,
	}
	if err := s.invoices.CreateWithItems(ctx, invoice, items, costIDs); err != nil {
		if errors.Is(err, repository.ErrCostsAlreadyBilled) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "no unbilled sessions found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	s.logger.Info("invoice assembled",
		zap.String("invoice_id", invoice.ID),
		zap.String("number", invoice.Number),
		zap.String("student_id", invoice.StudentID),
		zap.Int("line_items", len(items)),
		zap.String("total", invoice.TotalAmount.StringFixed(2)))
	return invoice, nil
}

// GetInvoice returns one invoice with its line items.
func (s *BillingService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	return invoice, nil
}

// ListInvoices returns invoices matching the filter.
func (s *BillingService) ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return invoices, paginationFor(filter.Page, filter.PageSize, total), nil
}

// SendInvoice moves a DRAFT invoice to SENT.
func (s *BillingService) SendInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.transition(ctx, id, models.InvoiceSent, nil)
}

// CancelInvoice cancels an invoice that has not been paid. The billing
// status of its session costs is intentionally left alone: the cost status
// chain never regresses.
func (s *BillingService) CancelInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.transition(ctx, id, models.InvoiceCancelled, nil)
}

// SweepOverdue flips sent invoices past their due date to OVERDUE.
func (s *BillingService) SweepOverdue(ctx context.Context) (int64, error) {
	flipped, err := s.invoices.MarkOverdue(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep overdue invoices")
	}
	if flipped > 0 {
		s.logger.Info("invoices marked overdue", zap.Int64("count", flipped))
	}
	return flipped, nil
}

// markInvoicePaid settles an invoice and flips its billed costs to PAID.
// Used by the payment recorder after the ledger credit landed.
func (s *BillingService) markInvoicePaid(ctx context.Context, id string, paidDate time.Time) error {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if !invoice.Status.CanTransitionTo(models.InvoicePaid) {
		return appErrors.Clone(appErrors.ErrStatusTransition, fmt.Sprintf("invoice is %s, cannot mark paid", strings.ToLower(string(invoice.Status))))
	}
	if err := s.invoices.UpdateStatus(ctx, id, invoice.Status, models.InvoicePaid, &paidDate); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoice paid")
	}
	if err := s.costs.MarkPaidByInvoice(ctx, id); err != nil {
		// The invoice is settled either way; cost rows catch up on the next
		// reconciliation pass.
		s.logger.Warn("failed to flip session costs to paid", zap.String("invoice_id", id), zap.Error(err))
	}
	return nil
}

func (s *BillingService) transition(ctx context.Context, id string, to models.InvoiceStatus, paidDate *time.Time) (*models.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.CanTransitionTo(to) {
		return nil, appErrors.Clone(appErrors.ErrStatusTransition,
			fmt.Sprintf("cannot move invoice from %s to %s", invoice.Status, to))
	}
	if err := s.invoices.UpdateStatus(ctx, id, invoice.Status, to, paidDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invoice status")
	}
	invoice.Status = to
	invoice.PaidDate = paidDate
	return invoice, nil
}

// newInvoiceNumber builds a display number with a date prefix and a random
// suffix. The invoices.number column carries a unique constraint, so a
// collision surfaces as an insert error instead of a duplicate.
func newInvoiceNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
