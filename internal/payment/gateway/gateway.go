// Package gateway abstracts the external payment provider behind a narrow
// interface with normalized results. The engine never sees provider types.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tair/rent-payments/internal/payment/domain"
)

// Config holds provider credentials and call policy, injected at construction.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int
	RetryBaseWait time.Duration

	// DefaultCurrency denominates charges initiated without an explicit
	// currency.
	DefaultCurrency string
}

// Payer identifies the paying party at the provider.
type Payer struct {
	ExternalPayerID string
	Email           string
	Name            string
}

// PayerProfile is the data needed to register a payer at the provider.
type PayerProfile struct {
	Email string
	Name  string
	Phone string
}

// Result is the normalized provider response. Provider rejections come back
// as Success=false with the provider's code and message; only configuration
// or transport exhaustion surfaces as an error.
type Result struct {
	Success               bool
	ExternalTransactionID string
	Status                domain.Status
	ErrorCode             string
	ErrorMessage          string
	ProcessingFee         decimal.Decimal
	ProcessedAt           *time.Time
	ConfirmationCode      string
	ClientToken           string
	CheckoutURL           string
	Metadata              map[string]string
}

// Gateway is the contract every provider adapter satisfies. Mutating calls
// are retry-safe: the adapter derives an idempotency key from the payment id
// and operation name.
type Gateway interface {
	// CreateIntent begins a charge that the client completes, returning a
	// continuation token for client-side confirmation.
	CreateIntent(ctx context.Context, payment *domain.Payment, payer Payer) (*Result, error)
	// Charge captures funds immediately. When the payment already carries
	// an external transaction id the adapter re-issues a status query
	// instead of creating a second charge.
	Charge(ctx context.Context, payment *domain.Payment, payer Payer, methodToken string) (*Result, error)
	// Confirm completes a charge that required additional authentication.
	Confirm(ctx context.Context, payment *domain.Payment, confirmation string) (*Result, error)
	// Refund refunds the given amount; a nil amount means a full refund.
	Refund(ctx context.Context, payment *domain.Payment, amount *decimal.Decimal, reason string) (*Result, error)
	// Cancel voids an uncaptured charge.
	Cancel(ctx context.Context, payment *domain.Payment, reason string) (*Result, error)
	// CreatePayer registers a payer and returns the provider's payer id.
	CreatePayer(ctx context.Context, profile PayerProfile) (string, error)
	// GetStatus queries the current state of a provider transaction.
	GetStatus(ctx context.Context, externalTransactionID string) (*Result, error)
}

// mapStatus translates a provider status string into the domain status.
// Total by construction: anything unrecognized is Failed, never Completed.
func mapStatus(providerStatus string) domain.Status {
	switch providerStatus {
	case "requires_payment_method", "requires_confirmation", "created", "pending":
		return domain.StatusPending
	case "requires_action", "processing", "requires_capture":
		return domain.StatusProcessing
	case "succeeded", "paid", "captured":
		return domain.StatusCompleted
	case "canceled", "cancelled", "voided":
		return domain.StatusCancelled
	case "refunded":
		return domain.StatusRefunded
	default:
		return domain.StatusFailed
	}
}

// classifyRefundReason maps a free-text reason onto the provider's reason
// codes. Best-effort only: the substring heuristic is not a contract and is
// never used for compliance-grade categorization.
func classifyRefundReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "duplicate"):
		return "duplicate"
	case strings.Contains(lower, "fraud"):
		return "fraudulent"
	default:
		return "requested_by_customer"
	}
}
