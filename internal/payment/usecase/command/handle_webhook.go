package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
	"github.com/tair/rent-payments/pkg/logger"
)

// HandleWebhookCommand carries a raw gateway delivery.
type HandleWebhookCommand struct {
	Payload         []byte
	SignatureHeader string
}

// WebhookHandler verifies, deduplicates and routes gateway events onto the
// state machine. Deliveries may arrive duplicated and out of order; the
// processed-event ledger and the transition guards absorb both.
type WebhookHandler struct {
	repo      domain.PaymentRepository
	events    domain.WebhookEventRepository
	verifier  *gateway.WebhookVerifier
	publisher EventPublisher
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(repo domain.PaymentRepository, events domain.WebhookEventRepository, verifier *gateway.WebhookVerifier, publisher EventPublisher) *WebhookHandler {
	return &WebhookHandler{repo: repo, events: events, verifier: verifier, publisher: publisher}
}

// Handle processes one delivery. Unverifiable or unroutable events are logged
// and dropped without touching any payment; the transport layer acknowledges
// regardless so the provider stops retrying.
func (h *WebhookHandler) Handle(ctx context.Context, cmd HandleWebhookCommand) error {
	if err := h.verifier.Verify(cmd.Payload, cmd.SignatureHeader); err != nil {
		logger.Warn(ctx).
			Err(err).
			Msg("Rejected gateway webhook with invalid signature")
		return err
	}

	event, err := gateway.ParseEvent(cmd.Payload)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("Dropped malformed gateway webhook")
		return err
	}

	// The unique event id makes replayed deliveries single-effect before
	// any transition is attempted.
	if err := h.events.MarkProcessed(event.ID, event.Type); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			logger.Info(ctx).
				Str("event_id", event.ID).
				Msg("Ignoring replayed gateway webhook")
			return nil
		}
		return err
	}

	payment, err := h.repo.FindByExternalTransactionID(event.ExternalTransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn(ctx).
				Str("event_id", event.ID).
				Str("external_transaction_id", event.ExternalTransactionID).
				Msg("Dropped gateway webhook for unknown transaction")
			return nil
		}
		return err
	}

	from := payment.Status

	switch event.Type {
	case gateway.EventPaymentSucceeded:
		if payment.Status == domain.StatusCompleted || payment.Status == domain.StatusRefunded {
			return nil
		}
		if !payment.Status.CanTransitionTo(domain.StatusCompleted) {
			logger.Warn(ctx).
				Str("event_id", event.ID).
				Str("payment_id", payment.ID).
				Str("status", string(payment.Status)).
				Msg("Dropped success webhook for payment in terminal state")
			return nil
		}
		payment.Status = domain.StatusCompleted

	case gateway.EventPaymentFailed:
		if payment.Status == domain.StatusFailed {
			return nil
		}
		if !payment.Status.CanTransitionTo(domain.StatusFailed) {
			logger.Warn(ctx).
				Str("event_id", event.ID).
				Str("payment_id", payment.ID).
				Str("status", string(payment.Status)).
				Msg("Dropped failure webhook; payment already settled")
			return nil
		}
		payment.Status = domain.StatusFailed
		payment.FailureCode = event.ErrorCode
		payment.FailureMessage = event.ErrorMessage

	case gateway.EventPaymentProcessing:
		// A processing event arriving after completion must not regress
		// the terminal state.
		if payment.Status != domain.StatusPending {
			return nil
		}
		payment.Status = domain.StatusProcessing

	case gateway.EventChargeRefunded:
		amount := payment.RemainingRefundable()
		if event.Amount != "" {
			parsed, parseErr := decimal.NewFromString(event.Amount)
			if parseErr != nil {
				return fmt.Errorf("webhook refund amount %q: %w", event.Amount, parseErr)
			}
			amount = parsed
		}
		if err := payment.ApplyRefund(amount); err != nil {
			logger.Warn(ctx).
				Err(err).
				Str("event_id", event.ID).
				Str("payment_id", payment.ID).
				Msg("Dropped refund webhook that violates the refund cap")
			return nil
		}

	default:
		logger.Debug(ctx).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("Ignoring unhandled gateway event type")
		return nil
	}

	committed, err := commitTransition(ctx, h.repo, payment, from)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// A concurrent writer moved the payment elsewhere; the
			// webhook is informational, not authoritative.
			logger.Warn(ctx).
				Err(err).
				Str("event_id", event.ID).
				Msg("Webhook transition lost to concurrent update")
			return nil
		}
		return err
	}
	publishStatusChanged(ctx, h.publisher, committed, from)

	logger.Info(ctx).
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("payment_id", committed.ID).
		Str("status", string(committed.Status)).
		Msg("Gateway webhook applied")

	return nil
}
