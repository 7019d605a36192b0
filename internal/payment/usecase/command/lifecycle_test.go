package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
)

func TestConfirmCompletesProcessingPayment(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{
		chargeResult:  successResult("ext-c1", domain.StatusProcessing),
		confirmResult: successResult("ext-c1", domain.StatusCompleted),
	}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "300.00")
	_, err := NewProcessHandler(repo, gw, nil).Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)

	confirmed, err := NewConfirmHandler(repo, gw, &recordingPublisher{}).Handle(context.Background(), ConfirmCommand{
		PaymentID:        payment.ID,
		ConfirmationCode: "3DS-OK",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, confirmed.Status)
	assert.Equal(t, "3DS-OK", confirmed.ConfirmationCode)
}

func TestConfirmAlreadyCompletedIsNoOp(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{
		chargeResult:  successResult("ext-c2", domain.StatusCompleted),
		confirmResult: successResult("ext-c2", domain.StatusCompleted),
	}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "300.00")
	_, err := NewProcessHandler(repo, gw, nil).Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)

	confirmed, err := NewConfirmHandler(repo, gw, nil).Handle(context.Background(), ConfirmCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, confirmed.Status)
	assert.Zero(t, gw.confirmCalls, "completed payments skip the provider")
}

func TestConfirmRejectsPendingPayment(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodCreditCard, "300.00")

	_, err := NewConfirmHandler(repo, &fakeGateway{}, nil).Handle(context.Background(), ConfirmCommand{PaymentID: payment.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelPendingPayment(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodBankTransfer, "300.00")

	cancelled, err := NewCancelHandler(repo, &fakeGateway{}, &recordingPublisher{}).Handle(context.Background(), CancelCommand{
		PaymentID: payment.ID,
		Reason:    "tenant moved out",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "tenant moved out")
}

func TestCancelIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	handler := NewCancelHandler(repo, &fakeGateway{}, &recordingPublisher{})
	payment := seedPayment(t, repo, domain.MethodCash, "300.00")

	_, err := handler.Handle(context.Background(), CancelCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	again, err := handler.Handle(context.Background(), CancelCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, again.Status)
}

func TestCancelRejectsCompletedPayment(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{chargeResult: successResult("ext-c3", domain.StatusCompleted)}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "300.00")
	_, err := NewProcessHandler(repo, gw, nil).Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)

	_, err = NewCancelHandler(repo, gw, nil).Handle(context.Background(), CancelCommand{PaymentID: payment.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "captured money needs a refund, not a cancel")
}

func TestCancelVoidFailureLeavesPaymentUntouched(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{
		chargeResult: successResult("ext-c4", domain.StatusProcessing),
		cancelResult: &gateway.Result{Success: false, ErrorCode: "already_captured"},
	}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "300.00")
	_, err := NewProcessHandler(repo, gw, nil).Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)

	_, err = NewCancelHandler(repo, gw, nil).Handle(context.Background(), CancelCommand{PaymentID: payment.ID})
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))

	stored, findErr := repo.FindByID(payment.ID)
	require.NoError(t, findErr)
	assert.Equal(t, domain.StatusProcessing, stored.Status)
}

func TestRefundRejectsNonCompletedPayment(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodBankTransfer, "300.00")

	amount := decimal.RequireFromString("100.00")
	_, err := NewRefundHandler(repo, &fakeGateway{}, nil).Handle(context.Background(), RefundCommand{
		PaymentID: payment.ID,
		Amount:    &amount,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// TestRentPaymentLifecycle walks a bank transfer rent payment through the full
// engine: initiation, processing, webhook settlement of the provider charge,
// then partial and full refunds with the cap enforced.
func TestRentPaymentLifecycle(t *testing.T) {
	repo := newMemRepo()
	events := newMemEvents()
	verifier := gateway.NewWebhookVerifier(testWebhookSecret, 5*time.Minute, nil)
	pub := &recordingPublisher{}
	gw := &fakeGateway{
		chargeResult: successResult("ext-1", domain.StatusProcessing),
		refundResult: &gateway.Result{Success: true, Status: domain.StatusCompleted},
	}
	ctx := context.Background()

	// Initiate: 1200.00 EUR by card so the charge carries ext-1.
	payment, err := NewInitiateHandler(repo, nil, "EUR").Handle(ctx, InitiateCommand{
		TenantID: "tenant-42",
		LeaseID:  "lease-42",
		Amount:   decimal.RequireFromString("1200.00"),
		Method:   domain.MethodCreditCard,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, payment.Status)

	// Process: charge succeeds asynchronously, payment enters Processing.
	processed, err := NewProcessHandler(repo, gw, pub).Handle(ctx, ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, processed.Status)
	require.Equal(t, "ext-1", processed.ExternalTransactionID)

	// The provider notifies settlement via a signed webhook.
	webhook := NewWebhookHandler(repo, events, verifier, pub)
	payload, err := json.Marshal(gateway.Event{
		ID:                    "evt-settle",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-1",
	})
	require.NoError(t, err)
	require.NoError(t, webhook.Handle(ctx, HandleWebhookCommand{
		Payload:         payload,
		SignatureHeader: verifier.SignatureHeader(payload, time.Now().Unix()),
	}))

	settled, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, settled.Status)

	// Partial refund keeps the payment Completed.
	refund := NewRefundHandler(repo, gw, pub)
	partial := decimal.RequireFromString("300.00")
	afterPartial, err := refund.Handle(ctx, RefundCommand{PaymentID: payment.ID, Amount: &partial, Reason: "overcharge"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, afterPartial.Status)
	assert.Equal(t, "300.00", afterPartial.RefundedAmount.StringFixed(2))
	assert.False(t, afterPartial.IsRefunded)

	// Refunding the remainder reaches Refunded exactly at the cap.
	rest := decimal.RequireFromString("900.00")
	afterFull, err := refund.Handle(ctx, RefundCommand{PaymentID: payment.ID, Amount: &rest})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, afterFull.Status)
	assert.Equal(t, "1200.00", afterFull.RefundedAmount.StringFixed(2))
	assert.True(t, afterFull.IsRefunded)

	// One more cent is over the cap.
	extra := decimal.RequireFromString("0.01")
	_, err = refund.Handle(ctx, RefundCommand{PaymentID: payment.ID, Amount: &extra})
	assert.True(t, domain.IsValidation(err))

	// Pending -> Processing -> Completed -> Refunded; the partial refund
	// changed no status and emitted nothing.
	assert.Equal(t, 3, pub.count())
}
