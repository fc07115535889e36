package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category groups transactions. Categories are shared by the whole studio;
// IsDefault marks the seeded set.
type Category struct {
	Base
	Name      string       `gorm:"size:100;not null" json:"name"`
	Type      CategoryType `gorm:"size:10;not null;index" json:"type"`
	Icon      string       `gorm:"size:50" json:"icon,omitempty"`
	Color     string       `gorm:"size:7" json:"color,omitempty"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
}
