package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Tattoo records a finished piece on a client.
type Tattoo struct {
	Base
	ClientID    string                      `gorm:"type:uuid;not null;index" json:"client_id"`
	Description string                      `gorm:"not null" json:"description"`
	BodyPart    string                      `gorm:"size:100;not null" json:"body_part"`
	Date        *time.Time                  `gorm:"type:date" json:"date,omitempty"`
	Price       *decimal.Decimal            `gorm:"type:numeric(12,2)" json:"price,omitempty"`
	Notes       string                      `json:"notes,omitempty"`
	Images      datatypes.JSONSlice[string] `json:"images"`
}
