package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type activeCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type sessionCounter interface {
	CountInRange(ctx context.Context, from, to time.Time) (int, error)
}

type outstandingReader interface {
	OutstandingTotals(ctx context.Context) (int, decimal.Decimal, error)
}

type lowBalanceCounter interface {
	CountBelowThreshold(ctx context.Context) (int, error)
}

// DashboardService aggregates the admin overview. The summary is cached in
// redis for the configured TTL since every widget query hits the database.
type DashboardService struct {
	students    activeCounter
	instructors activeCounter
	aircraft    activeCounter
	sessions    sessionCounter
	invoices    outstandingReader
	accounts    lowBalanceCounter

	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(students, instructors, aircraft activeCounter, sessions sessionCounter, invoices outstandingReader, accounts lowBalanceCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		students:    students,
		instructors: instructors,
		aircraft:    aircraft,
		sessions:    sessions,
		invoices:    invoices,
		accounts:    accounts,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Summary returns the school overview, served from cache when fresh. The
// second return value reports whether the cache satisfied the read.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops the cached summary. Called after writes that move the
// headline numbers (payments, invoices, roster changes).
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*models.DashboardSummary, error) {
	students, err := s.students.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	instructors, err := s.instructors.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count instructors")
	}
	aircraft, err := s.aircraft.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count aircraft")
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sessionsToday, err := s.sessions.CountInRange(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}

	outstandingCount, outstandingAmount, err := s.invoices.OutstandingTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total invoices")
	}
	lowBalance, err := s.accounts.CountBelowThreshold(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count low balance accounts")
	}

	return &models.DashboardSummary{
		ActiveStudents:      students,
		ActiveInstructors:   instructors,
		ActiveAircraft:      aircraft,
		SessionsToday:       sessionsToday,
		OutstandingInvoices: outstandingCount,
		OutstandingAmount:   outstandingAmount,
		LowBalanceAccounts:  lowBalance,
		GeneratedAt:         now,
	}, nil
}
