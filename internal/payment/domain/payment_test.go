package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
		StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
		StatusCompleted:  {StatusRefunded},
		StatusFailed:     {},
		StatusCancelled:  {},
		StatusRefunded:   {},
	}
	all := []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded}

	for from, targets := range allowed {
		ok := map[Status]bool{}
		for _, target := range targets {
			ok[target] = true
		}
		for _, to := range all {
			assert.Equal(t, ok[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	// Completed still allows the refund path.
	assert.False(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())
}

func TestMethod_Validity(t *testing.T) {
	for _, m := range []Method{MethodCash, MethodCheck, MethodBankTransfer, MethodCreditCard, MethodOnline} {
		assert.True(t, m.IsValid())
	}
	assert.False(t, Method("bitcoin").IsValid())

	assert.True(t, MethodCreditCard.RequiresGateway())
	assert.True(t, MethodOnline.RequiresGateway())
	assert.False(t, MethodBankTransfer.RequiresGateway())
}

func completedPayment(amount string) *Payment {
	return &Payment{
		ID:             "pay-1",
		Amount:         decimal.RequireFromString(amount),
		RefundedAmount: decimal.Zero,
		Status:         StatusCompleted,
	}
}

func TestApplyRefund_PartialThenFull(t *testing.T) {
	p := completedPayment("1200.00")

	require.NoError(t, p.ApplyRefund(decimal.RequireFromString("300.00")))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.False(t, p.IsRefunded)
	assert.True(t, p.RefundedAmount.Equal(decimal.RequireFromString("300.00")))

	require.NoError(t, p.ApplyRefund(decimal.RequireFromString("900.00")))
	assert.Equal(t, StatusRefunded, p.Status)
	assert.True(t, p.IsRefunded)
	assert.True(t, p.RemainingRefundable().IsZero())

	err := p.ApplyRefund(decimal.NewFromInt(1))
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestApplyRefund_CapEnforcedUnderRandomSequences(t *testing.T) {
	p := completedPayment("500.00")
	step := decimal.RequireFromString("123.45")

	refunded := decimal.Zero
	rejected := false
	for i := 0; i < 10; i++ {
		err := p.ApplyRefund(step)
		if err != nil {
			rejected = true
			break
		}
		refunded = refunded.Add(step)
	}

	assert.True(t, rejected, "the cap must eventually reject a refund")
	assert.True(t, p.RefundedAmount.Equal(refunded))
	assert.True(t, p.RefundedAmount.LessThanOrEqual(p.Amount))
}

func TestApplyRefund_Guards(t *testing.T) {
	p := completedPayment("100.00")
	assert.True(t, IsValidation(p.ApplyRefund(decimal.Zero)))
	assert.True(t, IsValidation(p.ApplyRefund(decimal.NewFromInt(-5))))

	pending := &Payment{Status: StatusPending, Amount: decimal.NewFromInt(100)}
	assert.ErrorIs(t, pending.ApplyRefund(decimal.NewFromInt(10)), ErrInvalidTransition)
}

func TestSetExternalTransactionID_Immutable(t *testing.T) {
	p := completedPayment("100.00")

	require.NoError(t, p.SetExternalTransactionID("ext-1"))
	// Re-applying the same id is a no-op.
	require.NoError(t, p.SetExternalTransactionID("ext-1"))
	require.NoError(t, p.SetExternalTransactionID(""))
	assert.Equal(t, "ext-1", p.ExternalTransactionID)

	err := p.SetExternalTransactionID("ext-2")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "ext-1", p.ExternalTransactionID)
}
