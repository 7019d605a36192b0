package command

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/rent-payments/internal/payment/domain"
)

func TestReconcileMatchesExactReferenceAndAmount(t *testing.T) {
	repo := newMemRepo()
	pub := &recordingPublisher{}
	payment := seedPayment(t, repo, domain.MethodBankTransfer, "500.00")

	handler := NewReconcileHandler(repo, pub)
	result, err := handler.Handle(context.Background(), ReconcileCommand{
		Reference:     payment.PaymentReference,
		Amount:        decimal.RequireFromString("500.00"),
		Date:          time.Now(),
		BankAccountID: "acct-9",
	})
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.Equal(t, payment.ID, result.PaymentID)

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Contains(t, stored.Notes, "acct-9")
	assert.Equal(t, 1, pub.count())
}

func TestReconcileAmountMismatchStaysUnmatched(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodBankTransfer, "500.00")

	handler := NewReconcileHandler(repo, nil)
	result, err := handler.Handle(context.Background(), ReconcileCommand{
		Reference: payment.PaymentReference,
		Amount:    decimal.RequireFromString("499.99"),
	})
	require.NoError(t, err)

	assert.False(t, result.Matched, "a cent off is not a match")
	assert.Contains(t, result.Reason, "amount mismatch")

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestReconcileUnknownReferenceStaysUnmatched(t *testing.T) {
	handler := NewReconcileHandler(newMemRepo(), nil)
	result, err := handler.Handle(context.Background(), ReconcileCommand{
		Reference: "RENT-DOESNOTEXIST",
		Amount:    decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestReconcileNonBankTransferStaysUnmatched(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodCash, "100.00")

	handler := NewReconcileHandler(repo, nil)
	result, err := handler.Handle(context.Background(), ReconcileCommand{
		Reference: payment.PaymentReference,
		Amount:    decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestReconcileReplayOfCompletedPaymentMatches(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodBankTransfer, "750.00")
	handler := NewReconcileHandler(repo, &recordingPublisher{})

	cmd := ReconcileCommand{
		Reference: payment.PaymentReference,
		Amount:    decimal.RequireFromString("750.00"),
	}
	first, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, first.Matched)

	// The same statement entry imported twice.
	second, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, second.Matched)
	assert.Equal(t, "already completed", second.Reason)

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version, "replay must not rewrite the payment")
}
