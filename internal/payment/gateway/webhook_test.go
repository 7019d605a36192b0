package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/rent-payments/internal/payment/domain"
)

func TestWebhookVerifier_ValidSignature(t *testing.T) {
	v := NewWebhookVerifier("whsec_test", 5*time.Minute, nil)
	payload := []byte(`{"id":"evt_1","type":"payment.succeeded","transaction_id":"ext-1"}`)

	header := v.SignatureHeader(payload, time.Now().Unix())
	assert.NoError(t, v.Verify(payload, header))
}

func TestWebhookVerifier_Rejections(t *testing.T) {
	v := NewWebhookVerifier("whsec_test", 5*time.Minute, nil)
	payload := []byte(`{"id":"evt_1","type":"payment.succeeded"}`)
	now := time.Now().Unix()

	tests := []struct {
		name   string
		header string
	}{
		{"empty header", ""},
		{"garbage header", "not-a-signature"},
		{"malformed timestamp", "t=abc,v1=deadbeef"},
		{"missing signature part", "t=" + "1756000000"},
		{"wrong signature", v.SignatureHeader([]byte("other payload"), now)},
		{"stale timestamp", v.SignatureHeader(payload, now-3600)},
		{"future timestamp", v.SignatureHeader(payload, now+3600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(payload, tt.header)
			assert.ErrorIs(t, err, domain.ErrSignature)
		})
	}
}

func TestWebhookVerifier_WrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment.failed"}`)
	now := time.Now().Unix()

	signer := NewWebhookVerifier("whsec_other", 5*time.Minute, nil)
	v := NewWebhookVerifier("whsec_test", 5*time.Minute, nil)

	err := v.Verify(payload, signer.SignatureHeader(payload, now))
	assert.ErrorIs(t, err, domain.ErrSignature)
}

func TestParseEvent(t *testing.T) {
	payload, err := json.Marshal(Event{
		ID:                    "evt_42",
		Type:                  EventPaymentSucceeded,
		ExternalTransactionID: "ext-42",
	})
	require.NoError(t, err)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "evt_42", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)
	assert.Equal(t, "ext-42", event.ExternalTransactionID)

	_, err = ParseEvent([]byte("{not json"))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"type":"payment.succeeded"}`))
	assert.Error(t, err)
}
