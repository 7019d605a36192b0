package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tair/rent-payments/internal/lease/domain"
)

type GormLeaseRepository struct {
	db *gorm.DB
}

func NewGormLeaseRepository(db *gorm.DB) *GormLeaseRepository {
	return &GormLeaseRepository{db: db}
}

func (r *GormLeaseRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Lease{})
}

func (r *GormLeaseRepository) FindActive() ([]domain.Lease, error) {
	var leases []domain.Lease
	err := r.db.Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&leases).Error
	return leases, err
}

func (r *GormLeaseRepository) FindByID(id string) (*domain.Lease, error) {
	var lease domain.Lease
	err := r.db.First(&lease, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &lease, nil
}
