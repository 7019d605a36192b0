package command

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
)

func seedPayment(t *testing.T, repo *memRepo, method domain.Method, amount string) *domain.Payment {
	t.Helper()
	initiate := NewInitiateHandler(repo, nil, "EUR")
	payment, err := initiate.Handle(context.Background(), InitiateCommand{
		TenantID: "tenant-1",
		LeaseID:  "lease-1",
		Amount:   decimal.RequireFromString(amount),
		Method:   method,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, payment.Status)
	return payment
}

func TestInitiateValidation(t *testing.T) {
	repo := newMemRepo()
	initiate := NewInitiateHandler(repo, nil, "EUR")

	_, err := initiate.Handle(context.Background(), InitiateCommand{
		Amount: decimal.RequireFromString("100"),
		Method: domain.MethodCash,
	})
	assert.True(t, domain.IsValidation(err), "missing tenant must be a validation error")

	_, err = initiate.Handle(context.Background(), InitiateCommand{
		TenantID: "tenant-1",
		Amount:   decimal.Zero,
		Method:   domain.MethodCash,
	})
	assert.True(t, domain.IsValidation(err), "zero amount must be a validation error")

	_, err = initiate.Handle(context.Background(), InitiateCommand{
		TenantID: "tenant-1",
		Amount:   decimal.RequireFromString("100"),
		Method:   domain.Method("barter"),
	})
	assert.True(t, domain.IsValidation(err), "unknown method must be a validation error")
}

func TestInitiateAssignsReferenceAndDefaults(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodBankTransfer, "1200.00")

	assert.NotEmpty(t, payment.ID)
	assert.Regexp(t, `^RENT-[0-9A-F]{12}$`, payment.PaymentReference)
	assert.Equal(t, "EUR", payment.Currency)
	assert.False(t, payment.Date.IsZero())
	assert.True(t, payment.RefundedAmount.IsZero())
}

func TestInitiateUsesConfiguredDefaultCurrency(t *testing.T) {
	repo := newMemRepo()
	initiate := NewInitiateHandler(repo, nil, "USD")

	payment, err := initiate.Handle(context.Background(), InitiateCommand{
		TenantID: "tenant-1",
		Amount:   decimal.RequireFromString("100"),
		Method:   domain.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", payment.Currency)

	explicit, err := initiate.Handle(context.Background(), InitiateCommand{
		TenantID: "tenant-2",
		Amount:   decimal.RequireFromString("100"),
		Currency: "GBP",
		Method:   domain.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "GBP", explicit.Currency, "an explicit currency wins over the default")
}

func TestProcessBankTransferSkipsGateway(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{}
	pub := &recordingPublisher{}
	payment := seedPayment(t, repo, domain.MethodBankTransfer, "1200.00")

	handler := NewProcessHandler(repo, gw, pub)
	processed, err := handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusProcessing, processed.Status)
	assert.Zero(t, gw.chargeCalls, "manual methods never hit the gateway")
	assert.Equal(t, 1, pub.count())
}

func TestProcessIsIdempotentWhileProcessing(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{chargeResult: successResult("ext-1", domain.StatusProcessing)}
	pub := &recordingPublisher{}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "500.00")

	handler := NewProcessHandler(repo, gw, pub)
	first, err := handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, first.Status)

	second, err := handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, second.Status)
	assert.Equal(t, 1, gw.chargeCalls, "re-processing must not charge twice")
	assert.Equal(t, 1, pub.count(), "no-op repeat emits no event")
}

func TestProcessChargesGatewayAndStoresTransactionID(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{chargeResult: successResult("ext-42", domain.StatusProcessing)}
	payment := seedPayment(t, repo, domain.MethodOnline, "350.00")

	handler := NewProcessHandler(repo, gw, &recordingPublisher{})
	processed, err := handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)

	assert.Equal(t, "ext-42", processed.ExternalTransactionID)
	assert.Equal(t, domain.StatusProcessing, processed.Status)

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "ext-42", stored.ExternalTransactionID)
}

func TestProcessSynchronousSettlement(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{chargeResult: successResult("ext-sync", domain.StatusCompleted)}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "75.00")

	handler := NewProcessHandler(repo, gw, &recordingPublisher{})
	processed, err := handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, processed.Status)
}

func TestProcessGatewayDeclineFailsPayment(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{chargeResult: &gateway.Result{
		Success:      false,
		Status:       domain.StatusFailed,
		ErrorCode:    "card_declined",
		ErrorMessage: "insufficient funds",
	}}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "75.00")

	handler := NewProcessHandler(repo, gw, &recordingPublisher{})
	_, err := handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))

	stored, findErr := repo.FindByID(payment.ID)
	require.NoError(t, findErr)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, "card_declined", stored.FailureCode)
}

func TestProcessTransportErrorLeavesPaymentUntouched(t *testing.T) {
	repo := newMemRepo()
	gw := &fakeGateway{chargeErr: errors.New("connection refused")}
	payment := seedPayment(t, repo, domain.MethodCreditCard, "75.00")

	handler := NewProcessHandler(repo, gw, &recordingPublisher{})
	_, err := handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))

	stored, findErr := repo.FindByID(payment.ID)
	require.NoError(t, findErr)
	assert.Equal(t, domain.StatusPending, stored.Status, "transport failures must be retryable")
}

func TestProcessRejectsTerminalPayment(t *testing.T) {
	repo := newMemRepo()
	payment := seedPayment(t, repo, domain.MethodCash, "75.00")

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	stored.Status = domain.StatusCancelled
	require.NoError(t, repo.UpdateVersioned(stored))

	handler := NewProcessHandler(repo, &fakeGateway{}, &recordingPublisher{})
	_, err = handler.Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
