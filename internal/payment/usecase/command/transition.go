package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/kafka"
	"github.com/tair/rent-payments/pkg/logger"
)

// EventPublisher publishes lifecycle events after committed transitions.
// Satisfied by kafka.Publisher; nil-able for callers that run without a broker.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event kafka.PaymentStatusChangedEvent) error
}

// commitTransition persists a payment that has already been mutated to its
// target state, guarded by the optimistic version check. Every transition in
// the engine funnels through here: webhooks, reconciliation and user actions
// all share this single path.
//
// A version conflict means a concurrent writer won the race. If the payment
// meanwhile reached the same target state the re-application is a no-op
// reported as success; anything else is an invalid transition.
func commitTransition(ctx context.Context, repo domain.PaymentRepository, payment *domain.Payment, from domain.Status) (*domain.Payment, error) {
	err := repo.UpdateVersioned(payment)
	if err == nil {
		logger.Audit(ctx, payment.ID, string(from), string(payment.Status)).
			Str("reference", payment.PaymentReference).
			Msg("Payment transition committed")
		return payment, nil
	}

	if errors.Is(err, domain.ErrVersionConflict) {
		current, findErr := repo.FindByID(payment.ID)
		if findErr != nil {
			return nil, findErr
		}
		if current.Status == payment.Status {
			logger.Info(ctx).
				Str("payment_id", payment.ID).
				Str("status", string(current.Status)).
				Msg("Concurrent transition already reached target state")
			return current, nil
		}
		return nil, fmt.Errorf("%w: payment %s is now %s", domain.ErrInvalidTransition, payment.ID, current.Status)
	}

	return nil, fmt.Errorf("failed to persist payment %s: %w", payment.ID, err)
}

// publishStatusChanged emits the lifecycle event best-effort. A broker outage
// must never fail a committed transition.
func publishStatusChanged(ctx context.Context, publisher EventPublisher, payment *domain.Payment, from domain.Status) {
	if publisher == nil || from == payment.Status {
		return
	}
	event := kafka.PaymentStatusChangedEvent{
		PaymentID:  payment.ID,
		TenantID:   payment.TenantID,
		Amount:     payment.Amount.StringFixed(2),
		Currency:   payment.Currency,
		Method:     string(payment.Method),
		FromStatus: string(from),
		ToStatus:   string(payment.Status),
		Reference:  payment.PaymentReference,
	}
	if err := publisher.PublishStatusChanged(ctx, event); err != nil {
		logger.Error(ctx).
			Err(err).
			Str("payment_id", payment.ID).
			Msg("Failed to publish payment status change")
	}
}
