package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tattootrack/internal/models"
)

// GormStore implements Store on a gorm handle. Pass the handle of an open
// transaction to make rule writes atomic with the appointment write.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ResolveCategory finds a category by exact name and type.
func (s *GormStore) ResolveCategory(ctx context.Context, name string, categoryType models.CategoryType) (*models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).
		Where("name = ? AND type = ?", name, categoryType).
		Order("created_at ASC").
		First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// HasAutomatic reports whether an automatic transaction already links the
// appointment to the category.
func (s *GormStore) HasAutomatic(ctx context.Context, appointmentID, categoryID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("appointment_id = ? AND category_id = ? AND is_automatic = ?", appointmentID, categoryID, true).
		Count(&count).Error
	return count > 0, err
}

// SumAutomatic totals the automatic transactions linking the appointment
// to the category.
func (s *GormStore) SumAutomatic(ctx context.Context, appointmentID, categoryID string) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("appointment_id = ? AND category_id = ? AND is_automatic = ?", appointmentID, categoryID, true).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

// Record inserts the transaction.
func (s *GormStore) Record(ctx context.Context, tx *models.Transaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}
