package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction is a ledger entry. Automatic entries are created by the
// appointment lifecycle and are read-only through the API.
type Transaction struct {
	Base
	Type          TransactionType `gorm:"size:10;not null;index" json:"type"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Description   string          `gorm:"size:500" json:"description"`
	Date          time.Time       `gorm:"not null;index" json:"date"`
	CategoryID    string          `gorm:"type:uuid;not null;index" json:"category_id"`
	AppointmentID *string         `gorm:"type:uuid;index" json:"appointment_id,omitempty"`
	IsAutomatic   bool            `gorm:"not null;default:false" json:"is_automatic"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
