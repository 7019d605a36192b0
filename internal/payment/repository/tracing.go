package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tair/rent-payments/internal/payment/domain"
)

var tracer = otel.Tracer("payment-repository")

// GormPaymentRepositoryWithTracing wraps GormPaymentRepository with tracing
type GormPaymentRepositoryWithTracing struct {
	*GormPaymentRepository
}

var _ domain.PaymentRepository = (*GormPaymentRepositoryWithTracing)(nil)

// NewGormPaymentRepositoryWithTracing creates a new repository with tracing
func NewGormPaymentRepositoryWithTracing(db *gorm.DB) *GormPaymentRepositoryWithTracing {
	return &GormPaymentRepositoryWithTracing{
		GormPaymentRepository: NewGormPaymentRepository(db),
	}
}

// Create with tracing
func (r *GormPaymentRepositoryWithTracing) CreateWithContext(ctx context.Context, payment *domain.Payment) error {
	_, span := tracer.Start(ctx, "repository.Create",
		trace.WithAttributes(
			attribute.String("payment.tenant_id", payment.TenantID),
			attribute.String("payment.method", string(payment.Method)),
			attribute.String("payment.amount", payment.Amount.StringFixed(2)),
		),
	)
	defer span.End()

	err := r.GormPaymentRepository.Create(payment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.String("payment.id", payment.ID))
	return nil
}

// FindByID with tracing
func (r *GormPaymentRepositoryWithTracing) FindByIDWithContext(ctx context.Context, id string) (*domain.Payment, error) {
	_, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(
			attribute.String("payment.id", id),
		),
	)
	defer span.End()

	payment, err := r.GormPaymentRepository.FindByID(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.status", string(payment.Status)))
	return payment, nil
}

// FindByReference with tracing
func (r *GormPaymentRepositoryWithTracing) FindByReferenceWithContext(ctx context.Context, reference string) (*domain.Payment, error) {
	_, span := tracer.Start(ctx, "repository.FindByReference",
		trace.WithAttributes(
			attribute.String("payment.reference", reference),
		),
	)
	defer span.End()

	payment, err := r.GormPaymentRepository.FindByReference(reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.id", payment.ID))
	return payment, nil
}

// UpdateVersioned with tracing
func (r *GormPaymentRepositoryWithTracing) UpdateVersionedWithContext(ctx context.Context, payment *domain.Payment) error {
	_, span := tracer.Start(ctx, "repository.UpdateVersioned",
		trace.WithAttributes(
			attribute.String("payment.id", payment.ID),
			attribute.String("payment.status", string(payment.Status)),
			attribute.Int64("payment.version", payment.Version),
		),
	)
	defer span.End()

	err := r.GormPaymentRepository.UpdateVersioned(payment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// Statistics with tracing
func (r *GormPaymentRepositoryWithTracing) StatisticsWithContext(ctx context.Context, from, to time.Time) (*domain.Statistics, error) {
	_, span := tracer.Start(ctx, "repository.Statistics",
		trace.WithAttributes(
			attribute.String("query.from", from.Format("2006-01-02")),
			attribute.String("query.to", to.Format("2006-01-02")),
		),
	)
	defer span.End()

	stats, err := r.GormPaymentRepository.Statistics(from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return stats, nil
}
