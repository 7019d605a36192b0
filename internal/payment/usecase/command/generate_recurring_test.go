package command

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	leasedomain "github.com/tair/rent-payments/internal/lease/domain"
	"github.com/tair/rent-payments/internal/payment/domain"
)

func testLease(id, tenantID string, rent string, billingDay int, active bool) leasedomain.Lease {
	return leasedomain.Lease{
		ID:         id,
		TenantID:   tenantID,
		RentAmount: decimal.RequireFromString(rent),
		Currency:   "EUR",
		Method:     domain.MethodBankTransfer,
		BillingDay: billingDay,
		IsActive:   active,
	}
}

func newGenerator(repo *memRepo, leases *memLeases) *GenerateRecurringHandler {
	initiate := NewInitiateHandler(repo, nil, "EUR")
	return NewGenerateRecurringHandler(repo, leases, initiate)
}

func TestGenerateRecurringCreatesOnePaymentPerActiveLease(t *testing.T) {
	repo := newMemRepo()
	leases := &memLeases{leases: []leasedomain.Lease{
		testLease("lease-1", "tenant-1", "1200.00", 1, true),
		testLease("lease-2", "tenant-2", "950.00", 5, true),
		testLease("lease-3", "tenant-3", "800.00", 1, false),
	}}

	summary, err := newGenerator(repo, leases).Handle(context.Background(), GenerateRecurringCommand{
		Year: 2026, Month: time.March,
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-03", summary.Period)
	assert.Equal(t, 2, summary.Created, "inactive leases are skipped")
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Len(t, summary.PaymentIDs, 2)

	for _, id := range summary.PaymentIDs {
		p, err := repo.FindByID(id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, p.Status)
		assert.True(t, p.IsRecurring)
		require.NotNil(t, p.RecurringForMonth)
		assert.Equal(t, "2026-03", *p.RecurringForMonth)
	}
}

func TestGenerateRecurringRerunCreatesNothing(t *testing.T) {
	repo := newMemRepo()
	leases := &memLeases{leases: []leasedomain.Lease{
		testLease("lease-1", "tenant-1", "1200.00", 1, true),
	}}
	generator := newGenerator(repo, leases)
	cmd := GenerateRecurringCommand{Year: 2026, Month: time.March}

	first, err := generator.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := generator.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Skipped)

	all, err := repo.Find(domain.PaymentFilter{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.Len(t, all, 1, "exactly one charge per tenant per period")
}

func TestGenerateRecurringDistinctPeriodsAreIndependent(t *testing.T) {
	repo := newMemRepo()
	leases := &memLeases{leases: []leasedomain.Lease{
		testLease("lease-1", "tenant-1", "1200.00", 1, true),
	}}
	generator := newGenerator(repo, leases)

	march, err := generator.Handle(context.Background(), GenerateRecurringCommand{Year: 2026, Month: time.March})
	require.NoError(t, err)
	april, err := generator.Handle(context.Background(), GenerateRecurringCommand{Year: 2026, Month: time.April})
	require.NoError(t, err)

	assert.Equal(t, 1, march.Created)
	assert.Equal(t, 1, april.Created)
}

func TestGenerateRecurringValidatesPeriod(t *testing.T) {
	generator := newGenerator(newMemRepo(), &memLeases{})

	_, err := generator.Handle(context.Background(), GenerateRecurringCommand{Year: 2026, Month: 13})
	assert.True(t, domain.IsValidation(err))

	_, err = generator.Handle(context.Background(), GenerateRecurringCommand{Year: 1, Month: time.March})
	assert.True(t, domain.IsValidation(err))
}

func TestBillingDateClampsIntoMonth(t *testing.T) {
	assert.Equal(t, 28, billingDate(2026, time.February, 31).Day())
	assert.Equal(t, 29, billingDate(2028, time.February, 31).Day())
	assert.Equal(t, 15, billingDate(2026, time.March, 15).Day())
	assert.Equal(t, 1, billingDate(2026, time.March, 0).Day())
}
