package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/tair/rent-payments/internal/payment/domain"
)

// Webhook event types delivered by the provider.
const (
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentFailed     = "payment.failed"
	EventPaymentProcessing = "payment.processing"
	EventChargeRefunded    = "charge.refunded"
)

// Event is a parsed gateway webhook payload.
type Event struct {
	ID                    string    `json:"id"`
	Type                  string    `json:"type"`
	ExternalTransactionID string    `json:"transaction_id"`
	Amount                string    `json:"amount,omitempty"`
	ErrorCode             string    `json:"error_code,omitempty"`
	ErrorMessage          string    `json:"error_message,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// WebhookVerifier authenticates inbound events against the shared secret.
// The signature header carries a timestamp and an HMAC-SHA256 of
// "<timestamp>.<payload>"; events outside the tolerance window are rejected
// to limit replay exposure.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	clock     clockz.Clock
}

// NewWebhookVerifier creates a verifier. Zero tolerance defaults to 5 minutes.
func NewWebhookVerifier(secret string, tolerance time.Duration, clock clockz.Clock) *WebhookVerifier {
	if tolerance == 0 {
		tolerance = 5 * time.Minute
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &WebhookVerifier{secret: []byte(secret), tolerance: tolerance, clock: clock}
}

// Verify checks the signature header against the raw payload. Any parsing or
// signature failure returns domain.ErrSignature; it never panics and never
// partially succeeds.
func (v *WebhookVerifier) Verify(payload []byte, signatureHeader string) error {
	timestamp, signature, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSignature, err)
	}

	age := v.clock.Now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrSignature)
	}

	expected := v.Sign(payload, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrSignature)
	}
	return nil
}

// Sign computes the hex HMAC for a payload at a timestamp. Exported for the
// fake gateway and tests to produce valid headers.
func (v *WebhookVerifier) Sign(payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders the header the provider would send.
func (v *WebhookVerifier) SignatureHeader(payload []byte, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, v.Sign(payload, timestamp))
}

func parseSignatureHeader(header string) (int64, string, error) {
	if header == "" {
		return 0, "", fmt.Errorf("missing signature header")
	}
	var timestamp int64
	var signature string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("malformed timestamp")
			}
			timestamp = ts
		case "v1":
			signature = kv[1]
		}
	}
	if timestamp == 0 || signature == "" {
		return 0, "", fmt.Errorf("incomplete signature header")
	}
	return timestamp, signature, nil
}

// ParseEvent decodes a verified payload into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("gateway: parse webhook event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("gateway: webhook event missing id or type")
	}
	return &event, nil
}
