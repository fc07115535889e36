package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/ledger"
	"tattootrack/internal/logger"
	"tattootrack/internal/models"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db    *gorm.DB
	rules ledger.Categories
}

// NewCategoryService creates a new CategoryServicer. rules names the income
// categories the appointment rules book into; EnsureDefaults seeds them.
func NewCategoryService(db *gorm.DB, rules ledger.Categories) CategoryServicer {
	return &categoryService{db: db, rules: rules}
}

// defaultCategories returns the seeded set.
func (s *categoryService) defaultCategories() []models.Category {
	return []models.Category{
		{Name: s.rules.Session, Type: models.CategoryTypeIncome, Color: "#34d399", Icon: "Palette"},
		{Name: s.rules.Deposit, Type: models.CategoryTypeIncome, Color: "#38bdf8", Icon: "Wallet"},
		{Name: "Retoque", Type: models.CategoryTypeIncome, Color: "#a78bfa", Icon: "RefreshCw"},
		{Name: "Outros", Type: models.CategoryTypeIncome, Color: "#94a3b8", Icon: "MoreHorizontal"},
		{Name: "Materiais", Type: models.CategoryTypeExpense, Color: "#f87171", Icon: "Package"},
		{Name: "Tintas", Type: models.CategoryTypeExpense, Color: "#fb923c", Icon: "Droplet"},
		{Name: "Agulhas", Type: models.CategoryTypeExpense, Color: "#fbbf24", Icon: "Scissors"},
		{Name: "Aluguel", Type: models.CategoryTypeExpense, Color: "#8b5cf6", Icon: "Home"},
		{Name: "Equipamentos", Type: models.CategoryTypeExpense, Color: "#06b6d4", Icon: "Monitor"},
		{Name: "Marketing", Type: models.CategoryTypeExpense, Color: "#ec4899", Icon: "Megaphone"},
		{Name: "Outros", Type: models.CategoryTypeExpense, Color: "#94a3b8", Icon: "MoreHorizontal"},
	}
}

// EnsureDefaults creates any missing default category. Safe to run on
// every start.
func (s *categoryService) EnsureDefaults(ctx context.Context) error {
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range s.defaultCategories() {
			if c.Name == "" {
				continue
			}
			var count int64
			if err := tx.Model(&models.Category{}).
				Where("name = ? AND type = ?", c.Name, c.Type).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			category := c
			category.IsDefault = true
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if created > 0 {
		logger.Get().Infow("seeded default categories", "count", created)
	}
	return nil
}

// ListCategories returns categories sorted by type and name, optionally
// filtered by type.
func (s *categoryService) ListCategories(categoryType *models.CategoryType) ([]models.Category, error) {
	query := s.db.Model(&models.Category{})
	if categoryType != nil {
		query = query.Where("type = ?", *categoryType)
	}

	categories := []models.Category{}
	if err := query.Order("type ASC").Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category by ID
func (s *categoryService) GetCategoryByID(id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

func (s *categoryService) nameTaken(name string, categoryType models.CategoryType, excludeID string) (bool, error) {
	query := s.db.Model(&models.Category{}).Where("name = ? AND type = ?", name, categoryType)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(name string, categoryType models.CategoryType, icon, color string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if categoryType != models.CategoryTypeIncome && categoryType != models.CategoryTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be income or expense")
	}

	taken, err := s.nameTaken(name, categoryType, "")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if taken {
		return nil, apperrors.ErrDuplicateCategory
	}

	category := &models.Category{
		Name:  name,
		Type:  categoryType,
		Icon:  icon,
		Color: color,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// UpdateCategory updates name, icon or color. The type is fixed once
// transactions may reference it.
func (s *categoryService) UpdateCategory(id string, name, icon, color *string) (*models.Category, error) {
	category, err := s.GetCategoryByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		if trimmed != category.Name {
			taken, err := s.nameTaken(trimmed, category.Type, category.ID)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if taken {
				return nil, apperrors.ErrDuplicateCategory
			}
			updates["name"] = trimmed
		}
	}
	if icon != nil {
		updates["icon"] = *icon
	}
	if color != nil {
		updates["color"] = *color
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetCategoryByID(id)
}

// DeleteCategory deletes a category that no transaction references.
func (s *categoryService) DeleteCategory(id string) error {
	category, err := s.GetCategoryByID(id)
	if err != nil {
		return err
	}

	var txCount int64
	if err := s.db.Model(&models.Transaction{}).Where("category_id = ?", id).Count(&txCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if txCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
