package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flightline-dev/flightline-api/internal/models"
)

// SessionCostRepository handles computed session cost persistence.
type SessionCostRepository struct {
	db *sqlx.DB
}

// NewSessionCostRepository creates a new session cost repository.
func NewSessionCostRepository(db *sqlx.DB) *SessionCostRepository {
	return &SessionCostRepository{db: db}
}

const sessionCostColumns = "id, session_id, student_id, aircraft_cost, instructor_cost, ground_cost, fuel_cost, fees_cost, total_cost, status, invoice_id, created_at, updated_at"

// Upsert writes the cost for a session. Recomputation overwrites the row but
// only while it is still PENDING; billed or paid costs are never touched.
func (r *SessionCostRepository) Upsert(ctx context.Context, cost *models.SessionCost) error {
	if cost.ID == "" {
		cost.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cost.CreatedAt.IsZero() {
		cost.CreatedAt = now
	}
	cost.UpdatedAt = now
	if cost.Status == "" {
		cost.Status = models.CostPending
	}
	const query = `INSERT INTO session_costs (id, session_id, student_id, aircraft_cost, instructor_cost, ground_cost, fuel_cost, fees_cost, total_cost, status, invoice_id, created_at, updated_at)
        VALUES (:id, :session_id, :student_id, :aircraft_cost, :instructor_cost, :ground_cost, :fuel_cost, :fees_cost, :total_cost, :status, :invoice_id, :created_at, :updated_at)
        ON CONFLICT (session_id) DO UPDATE SET
            aircraft_cost = EXCLUDED.aircraft_cost,
            instructor_cost = EXCLUDED.instructor_cost,
            ground_cost = EXCLUDED.ground_cost,
            fuel_cost = EXCLUDED.fuel_cost,
            fees_cost = EXCLUDED.fees_cost,
            total_cost = EXCLUDED.total_cost,
            updated_at = EXCLUDED.updated_at
        WHERE session_costs.status = 'PENDING'`
	if _, err := r.db.NamedExecContext(ctx, query, cost); err != nil {
		return fmt.Errorf("upsert session cost: %w", err)
	}
	return nil
}

// FindBySession returns the cost row for a session.
func (r *SessionCostRepository) FindBySession(ctx context.Context, sessionID string) (*models.SessionCost, error) {
	query := fmt.Sprintf("SELECT %s FROM session_costs WHERE session_id = $1 LIMIT 1", sessionCostColumns)
	var cost models.SessionCost
	if err := r.db.GetContext(ctx, &cost, query, sessionID); err != nil {
		return nil, err
	}
	return &cost, nil
}

// FindPendingBySessions returns PENDING costs for the given student limited
// to the provided session ids. Already billed or paid costs are filtered out.
func (r *SessionCostRepository) FindPendingBySessions(ctx context.Context, studentID string, sessionIDs []string) ([]models.SessionCost, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]interface{}, 0, len(sessionIDs)+2)
	args = append(args, studentID, models.CostPending)
	for i, id := range sessionIDs {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT %s FROM session_costs
        WHERE student_id = $1 AND status = $2 AND session_id IN (%s)
        ORDER BY created_at ASC`, sessionCostColumns, strings.Join(placeholders, ","))
	var costs []models.SessionCost
	if err := r.db.SelectContext(ctx, &costs, query, args...); err != nil {
		return nil, fmt.Errorf("find pending session costs: %w", err)
	}
	return costs, nil
}

// List returns session costs matching the filter.
func (r *SessionCostRepository) List(ctx context.Context, filter models.SessionCostFilter) ([]models.SessionCost, error) {
	query := fmt.Sprintf("SELECT %s FROM session_costs WHERE 1=1", sessionCostColumns)
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	query += " ORDER BY created_at DESC"
	var costs []models.SessionCost
	if err := r.db.SelectContext(ctx, &costs, query, args...); err != nil {
		return nil, fmt.Errorf("list session costs: %w", err)
	}
	return costs, nil
}

// MarkPaidByInvoice flips every BILLED cost on an invoice to PAID.
func (r *SessionCostRepository) MarkPaidByInvoice(ctx context.Context, invoiceID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE session_costs SET status = $1, updated_at = $2 WHERE invoice_id = $3 AND status = $4`,
		models.CostPaid, time.Now().UTC(), invoiceID, models.CostBilled)
	if err != nil {
		return fmt.Errorf("mark session costs paid: %w", err)
	}
	return nil
}
