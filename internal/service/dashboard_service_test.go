package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type countStub struct {
	n     int
	calls int
}

func (c *countStub) CountActive(ctx context.Context) (int, error) {
	c.calls++
	return c.n, nil
}

func (c *countStub) CountInRange(ctx context.Context, from, to time.Time) (int, error) {
	c.calls++
	return c.n, nil
}

func (c *countStub) CountBelowThreshold(ctx context.Context) (int, error) {
	c.calls++
	return c.n, nil
}

type outstandingStub struct {
	count  int
	amount decimal.Decimal
}

func (o *outstandingStub) OutstandingTotals(ctx context.Context) (int, decimal.Decimal, error) {
	return o.count, o.amount, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = make(map[string][]byte)
	return nil
}

func newDashboardFixture(cache *CacheService) (*DashboardService, *countStub) {
	students := &countStub{n: 42}
	return NewDashboardService(
		students,
		&countStub{n: 7},
		&countStub{n: 5},
		&countStub{n: 9},
		&outstandingStub{count: 3, amount: decimal.NewFromInt(1250)},
		&countStub{n: 2},
		cache, time.Minute, nil,
	), students
}

func TestSummaryAggregatesCounters(t *testing.T) {
	cache := NewCacheService(nil, nil, time.Minute, nil, false)
	svc, _ := newDashboardFixture(cache)

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 42, summary.ActiveStudents)
	assert.Equal(t, 7, summary.ActiveInstructors)
	assert.Equal(t, 5, summary.ActiveAircraft)
	assert.Equal(t, 9, summary.SessionsToday)
	assert.Equal(t, 3, summary.OutstandingInvoices)
	assert.True(t, summary.OutstandingAmount.Equal(decimal.NewFromInt(1250)))
	assert.Equal(t, 2, summary.LowBalanceAccounts)
}

func TestSummaryServesFromCache(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc, students := newDashboardFixture(cache)
	ctx := context.Background()

	_, cached, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	first := students.calls

	summary, cached, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, students.calls, "second read comes from cache")
	assert.Equal(t, 42, summary.ActiveStudents)

	svc.Invalidate(ctx)
	_, cached, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, cached, "invalidation forces a rebuild")
	assert.Greater(t, students.calls, first)
}
