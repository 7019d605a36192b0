//go:build wireinject
// +build wireinject

package payment

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	leasedomain "github.com/tair/rent-payments/internal/lease/domain"
	leaserepository "github.com/tair/rent-payments/internal/lease/repository"
	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
	"github.com/tair/rent-payments/internal/payment/handler"
	"github.com/tair/rent-payments/internal/payment/iban"
	"github.com/tair/rent-payments/internal/payment/repository"
	"github.com/tair/rent-payments/internal/payment/usecase/command"
	"github.com/tair/rent-payments/internal/payment/usecase/query"
)

// Repository providers

func ProvidePaymentRepository(db *gorm.DB) domain.PaymentRepository {
	return repository.NewGormPaymentRepositoryWithTracing(db)
}

func ProvideWebhookEventRepository(db *gorm.DB) domain.WebhookEventRepository {
	return repository.NewGormWebhookEventRepository(db)
}

func ProvideLeaseRepository(db *gorm.DB) leasedomain.LeaseRepository {
	return leaserepository.NewGormLeaseRepository(db)
}

// Gateway providers

func ProvideGateway(cfg gateway.Config) (gateway.Gateway, error) {
	return gateway.NewHTTPGateway(cfg, nil)
}

func ProvideWebhookVerifier(cfg gateway.Config) *gateway.WebhookVerifier {
	return gateway.NewWebhookVerifier(cfg.WebhookSecret, 0, nil)
}

func ProvideIBANValidator() *iban.Validator {
	return iban.NewValidator(nil)
}

// Command handler providers

func ProvideInitiateHandler(repo domain.PaymentRepository, cfg gateway.Config) *command.InitiateHandler {
	return command.NewInitiateHandler(repo, nil, cfg.DefaultCurrency)
}

func ProvideProcessHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher command.EventPublisher) *command.ProcessHandler {
	return command.NewProcessHandler(repo, gw, publisher)
}

func ProvideConfirmHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher command.EventPublisher) *command.ConfirmHandler {
	return command.NewConfirmHandler(repo, gw, publisher)
}

func ProvideCancelHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher command.EventPublisher) *command.CancelHandler {
	return command.NewCancelHandler(repo, gw, publisher)
}

func ProvideRefundHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher command.EventPublisher) *command.RefundHandler {
	return command.NewRefundHandler(repo, gw, publisher)
}

func ProvideWebhookHandler(repo domain.PaymentRepository, events domain.WebhookEventRepository, verifier *gateway.WebhookVerifier, publisher command.EventPublisher) *command.WebhookHandler {
	return command.NewWebhookHandler(repo, events, verifier, publisher)
}

func ProvideReconcileHandler(repo domain.PaymentRepository, publisher command.EventPublisher) *command.ReconcileHandler {
	return command.NewReconcileHandler(repo, publisher)
}

func ProvideGenerateRecurringHandler(repo domain.PaymentRepository, leases leasedomain.LeaseRepository, initiate *command.InitiateHandler) *command.GenerateRecurringHandler {
	return command.NewGenerateRecurringHandler(repo, leases, initiate)
}

// Query handler providers

func ProvideGetPaymentHandler(repo domain.PaymentRepository) *query.GetPaymentHandler {
	return query.NewGetPaymentHandler(repo)
}

func ProvideListPaymentsHandler(repo domain.PaymentRepository) *query.ListPaymentsHandler {
	return query.NewListPaymentsHandler(repo)
}

func ProvideStatisticsHandler(repo domain.PaymentRepository) *query.StatisticsHandler {
	return query.NewStatisticsHandler(repo)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvidePaymentRepository,
	ProvideWebhookEventRepository,
	ProvideLeaseRepository,
)

var GatewaySet = wire.NewSet(
	ProvideGateway,
	ProvideWebhookVerifier,
	ProvideIBANValidator,
)

var CommandHandlerSet = wire.NewSet(
	ProvideInitiateHandler,
	ProvideProcessHandler,
	ProvideConfirmHandler,
	ProvideCancelHandler,
	ProvideRefundHandler,
	ProvideWebhookHandler,
	ProvideReconcileHandler,
	ProvideGenerateRecurringHandler,
)

var QueryHandlerSet = wire.NewSet(
	ProvideGetPaymentHandler,
	ProvideListPaymentsHandler,
	ProvideStatisticsHandler,
)

var AllHandlersSet = wire.NewSet(
	RepositorySet,
	GatewaySet,
	CommandHandlerSet,
	QueryHandlerSet,
)

// InitializeHandler initializes payment handler with all dependencies
func InitializeHandler(db *gorm.DB, gatewayCfg gateway.Config, publisher command.EventPublisher) (*handler.PaymentHandler, error) {
	wire.Build(
		AllHandlersSet,
		handler.NewPaymentHandler,
	)
	return nil, nil
}
