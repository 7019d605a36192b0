package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
)

const testWebhookSecret = "whsec_test"

func newWebhookFixture(t *testing.T) (*WebhookHandler, *memRepo, *gateway.WebhookVerifier, *recordingPublisher) {
	t.Helper()
	repo := newMemRepo()
	verifier := gateway.NewWebhookVerifier(testWebhookSecret, 5*time.Minute, nil)
	pub := &recordingPublisher{}
	handler := NewWebhookHandler(repo, newMemEvents(), verifier, pub)
	return handler, repo, verifier, pub
}

func signedDelivery(t *testing.T, verifier *gateway.WebhookVerifier, event gateway.Event) HandleWebhookCommand {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	ts := time.Now().Unix()
	return HandleWebhookCommand{
		Payload:         payload,
		SignatureHeader: verifier.SignatureHeader(payload, ts),
	}
}

// seedProcessing creates a gateway payment already charged into Processing
// with the given external transaction id.
func seedProcessing(t *testing.T, repo *memRepo, extID, amount string) *domain.Payment {
	t.Helper()
	payment := seedPayment(t, repo, domain.MethodCreditCard, amount)
	gw := &fakeGateway{chargeResult: successResult(extID, domain.StatusProcessing)}
	processed, err := NewProcessHandler(repo, gw, nil).Handle(context.Background(), ProcessCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	return processed
}

func TestWebhookInvalidSignatureChangesNothing(t *testing.T) {
	handler, repo, _, pub := newWebhookFixture(t)
	payment := seedProcessing(t, repo, "ext-sig", "100.00")

	payload, err := json.Marshal(gateway.Event{
		ID:                    "evt-1",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-sig",
	})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), HandleWebhookCommand{
		Payload:         payload,
		SignatureHeader: "t=1,v1=deadbeef",
	})
	assert.ErrorIs(t, err, domain.ErrSignature)

	stored, findErr := repo.FindByID(payment.ID)
	require.NoError(t, findErr)
	assert.Equal(t, domain.StatusProcessing, stored.Status)
	assert.Zero(t, pub.count())
}

func TestWebhookSucceededCompletesPayment(t *testing.T) {
	handler, repo, verifier, pub := newWebhookFixture(t)
	payment := seedProcessing(t, repo, "ext-ok", "100.00")

	cmd := signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-ok",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-ok",
	})
	require.NoError(t, handler.Handle(context.Background(), cmd))

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, 1, pub.count())
}

func TestWebhookReplayedDeliveryAppliesOnce(t *testing.T) {
	handler, repo, verifier, pub := newWebhookFixture(t)
	payment := seedProcessing(t, repo, "ext-replay", "100.00")

	cmd := signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-replay",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-replay",
	})
	require.NoError(t, handler.Handle(context.Background(), cmd))
	require.NoError(t, handler.Handle(context.Background(), cmd))
	require.NoError(t, handler.Handle(context.Background(), cmd))

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, 1, pub.count(), "replays must not re-emit lifecycle events")
}

func TestWebhookOutOfOrderProcessingDoesNotRegress(t *testing.T) {
	handler, repo, verifier, _ := newWebhookFixture(t)
	payment := seedProcessing(t, repo, "ext-order", "100.00")

	succeeded := signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-a",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-order",
	})
	require.NoError(t, handler.Handle(context.Background(), succeeded))

	// The earlier processing event arrives late.
	late := signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-b",
		Type:                  gateway.EventPaymentProcessing,
		ExternalTransactionID: "ext-order",
	})
	require.NoError(t, handler.Handle(context.Background(), late))

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status, "terminal state must never regress")
}

func TestWebhookFailedAfterCompletionIsDropped(t *testing.T) {
	handler, repo, verifier, _ := newWebhookFixture(t)
	payment := seedProcessing(t, repo, "ext-late-fail", "100.00")

	require.NoError(t, handler.Handle(context.Background(), signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-c",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-late-fail",
	})))
	require.NoError(t, handler.Handle(context.Background(), signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-d",
		Type:                  gateway.EventPaymentFailed,
		ExternalTransactionID: "ext-late-fail",
		ErrorCode:             "expired",
	})))

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Empty(t, stored.FailureCode)
}

func TestWebhookUnknownTransactionIsDropped(t *testing.T) {
	handler, _, verifier, pub := newWebhookFixture(t)

	cmd := signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-unknown",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-never-seen",
	})
	assert.NoError(t, handler.Handle(context.Background(), cmd))
	assert.Zero(t, pub.count())
}

func TestWebhookRefundEventAppliesPartialRefund(t *testing.T) {
	handler, repo, verifier, _ := newWebhookFixture(t)
	payment := seedProcessing(t, repo, "ext-refund", "200.00")

	require.NoError(t, handler.Handle(context.Background(), signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-e",
		Type:                  gateway.EventPaymentSucceeded,
		ExternalTransactionID: "ext-refund",
	})))
	require.NoError(t, handler.Handle(context.Background(), signedDelivery(t, verifier, gateway.Event{
		ID:                    "evt-f",
		Type:                  gateway.EventChargeRefunded,
		ExternalTransactionID: "ext-refund",
		Amount:                "50.00",
	})))

	stored, err := repo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status, "partial refund keeps the payment completed")
	assert.Equal(t, "50.00", stored.RefundedAmount.StringFixed(2))
	assert.False(t, stored.IsRefunded)
}
