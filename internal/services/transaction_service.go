package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/models"
	"tattootrack/internal/pagination"
	"tattootrack/internal/schedule"
)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db *gorm.DB
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB) TransactionServicer {
	return &transactionService{db: db}
}

// dayBounds turns inclusive calendar days into a half-open timestamp range.
func dayBounds(from, to *time.Time) (*time.Time, *time.Time) {
	var start, end *time.Time
	if from != nil {
		d := schedule.NormalizeDay(*from)
		start = &d
	}
	if to != nil {
		d := schedule.NormalizeDay(*to).AddDate(0, 0, 1)
		end = &d
	}
	return start, end
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	from, to := dayBounds(f.FromDate, f.ToDate)
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if to != nil {
		q = q.Where("date < ?", *to)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.AppointmentID != nil {
		q = q.Where("appointment_id = ?", *f.AppointmentID)
	}
	return q
}

// ListTransactions retrieves a paginated, filtered list of transactions,
// newest first.
func (s *transactionService) ListTransactions(page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	base := applyTransactionFilters(s.db.Model(&models.Transaction{}), filter).
		Order("date DESC").Order("created_at DESC")

	result, err := pagination.Fetch[models.Transaction](base, page, func(db *gorm.DB) *gorm.DB {
		return db.Preload("Category")
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetTransactionByID retrieves a transaction with its category.
func (s *transactionService) GetTransactionByID(id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.Preload("Category").Where("id = ?", id).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tx, nil
}

// checkCategory loads the category and verifies it books the given type.
func (s *transactionService) checkCategory(categoryID string, txType models.TransactionType) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if string(category.Type) != string(txType) {
		return nil, apperrors.ErrCategoryTypeMismatch
	}
	return &category, nil
}

// CreateTransaction records a manual income or expense.
func (s *transactionService) CreateTransaction(input TransactionInput) (*models.Transaction, error) {
	if input.Type == nil || input.Amount == nil || input.Date == nil || input.CategoryID == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "type, amount, date and category_id are required")
	}
	if *input.Type != models.TransactionTypeIncome && *input.Type != models.TransactionTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "type must be income or expense")
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}

	category, err := s.checkCategory(*input.CategoryID, *input.Type)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Type:       *input.Type,
		Amount:     input.Amount.Round(2),
		Date:       input.Date.UTC(),
		CategoryID: category.ID,
	}
	if input.Description != nil {
		tx.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.db.Omit(clause.Associations).Create(tx).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	tx.Category = category
	return tx, nil
}

// UpdateTransaction changes a manual transaction. Automatic entries are
// read-only.
func (s *transactionService) UpdateTransaction(id string, input TransactionInput) (*models.Transaction, error) {
	tx, err := s.GetTransactionByID(id)
	if err != nil {
		return nil, err
	}
	if tx.IsAutomatic {
		return nil, apperrors.ErrTransactionNotEditable
	}

	nextType := tx.Type
	if input.Type != nil {
		if *input.Type != models.TransactionTypeIncome && *input.Type != models.TransactionTypeExpense {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "type must be income or expense")
		}
		nextType = *input.Type
	}
	nextCategory := tx.CategoryID
	if input.CategoryID != nil {
		nextCategory = *input.CategoryID
	}

	updates := make(map[string]any)
	if input.Type != nil || input.CategoryID != nil {
		if _, err := s.checkCategory(nextCategory, nextType); err != nil {
			return nil, err
		}
		updates["type"] = nextType
		updates["category_id"] = nextCategory
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = input.Amount.Round(2)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Date != nil {
		updates["date"] = input.Date.UTC()
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Transaction{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetTransactionByID(id)
}

// DeleteTransaction deletes a manual transaction.
func (s *transactionService) DeleteTransaction(id string) error {
	tx, err := s.GetTransactionByID(id)
	if err != nil {
		return err
	}
	if tx.IsAutomatic {
		return apperrors.ErrTransactionNotEditable
	}

	if err := s.db.Delete(&models.Transaction{}, "id = ?", id).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
