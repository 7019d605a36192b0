package repository

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tair/rent-payments/internal/payment/domain"
)

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Payment{})
}

func (r *GormPaymentRepository) Create(payment *domain.Payment) error {
	if err := r.db.Create(payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if payment.RecurringForMonth != nil {
				return domain.ErrDuplicatePeriod
			}
			return domain.ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *GormPaymentRepository) FindByID(id string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.First(&payment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindByReference(reference string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.Where("payment_reference = ?", reference).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindByExternalTransactionID(extID string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.Where("external_transaction_id = ?", extID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) Find(filter domain.PaymentFilter) ([]domain.Payment, error) {
	q := r.db.Model(&domain.Payment{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("date <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var payments []domain.Payment
	err := q.Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *GormPaymentRepository) ExistsForPeriod(tenantID, period string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.Payment{}).
		Where("tenant_id = ? AND recurring_for_month = ?", tenantID, period).
		Count(&count).Error
	return count > 0, err
}

// UpdateVersioned commits a mutation only if no concurrent writer got there
// first. The version predicate makes the update a compare-and-swap; zero
// affected rows means the caller lost the race.
func (r *GormPaymentRepository) UpdateVersioned(payment *domain.Payment) error {
	currentVersion := payment.Version
	payment.Version = currentVersion + 1

	result := r.db.Model(&domain.Payment{}).
		Where("id = ? AND version = ?", payment.ID, currentVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(payment)
	if result.Error != nil {
		payment.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		payment.Version = currentVersion
		return domain.ErrVersionConflict
	}
	return nil
}

type statusRow struct {
	Status domain.Status
	Count  int64
	Amount decimal.Decimal
}

type methodRow struct {
	Method domain.Method
	Amount decimal.Decimal
}

type monthRow struct {
	Month  string
	Count  int64
	Amount decimal.Decimal
}

func (r *GormPaymentRepository) Statistics(from, to time.Time) (*domain.Statistics, error) {
	stats := &domain.Statistics{
		TotalAmount:    decimal.Zero,
		RefundedAmount: decimal.Zero,
		ByStatus:       make(map[domain.Status]domain.StatusBucket),
		ByMethod:       make(map[domain.Method]decimal.Decimal),
	}

	ranged := func() *gorm.DB {
		return r.db.Model(&domain.Payment{}).Where("date >= ? AND date <= ?", from, to)
	}

	var statusRows []statusRow
	if err := ranged().
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = domain.StatusBucket{Count: row.Count, Amount: row.Amount}
		stats.TotalCount += row.Count
		stats.TotalAmount = stats.TotalAmount.Add(row.Amount)
	}

	var methodRows []methodRow
	if err := ranged().
		Select("method, COALESCE(SUM(amount), 0) AS amount").
		Where("status IN ?", []domain.Status{domain.StatusCompleted, domain.StatusRefunded}).
		Group("method").
		Scan(&methodRows).Error; err != nil {
		return nil, err
	}
	for _, row := range methodRows {
		stats.ByMethod[row.Method] = row.Amount
	}

	var refunded decimal.NullDecimal
	if err := ranged().
		Select("COALESCE(SUM(refunded_amount), 0)").
		Scan(&refunded).Error; err != nil {
		return nil, err
	}
	if refunded.Valid {
		stats.RefundedAmount = refunded.Decimal
	}

	var monthRows []monthRow
	if err := ranged().
		Select("to_char(date, 'YYYY-MM') AS month, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("status IN ?", []domain.Status{domain.StatusCompleted, domain.StatusRefunded}).
		Group("month").
		Order("month ASC").
		Scan(&monthRows).Error; err != nil {
		return nil, err
	}
	for _, row := range monthRows {
		stats.Monthly = append(stats.Monthly, domain.MonthlyBucket{
			Month:  row.Month,
			Count:  row.Count,
			Amount: row.Amount,
		})
	}

	return stats, nil
}
