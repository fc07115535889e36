package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Appointment is a booked session on the studio calendar. Date holds the
// calendar day at midnight UTC; StartTime is wall-clock "HH:MM" in the
// studio timezone.
type Appointment struct {
	Base
	ClientID       string            `gorm:"type:uuid;not null;index" json:"client_id"`
	Title          string            `gorm:"size:200;not null" json:"title"`
	Description    string            `json:"description,omitempty"`
	Date           time.Time         `gorm:"type:date;not null;index" json:"date"`
	StartTime      string            `gorm:"size:5;not null" json:"start_time"`
	EstimatedHours float64           `gorm:"not null;default:1" json:"estimated_hours"`
	Status         AppointmentStatus `gorm:"size:20;not null;default:scheduled;index" json:"status"`
	Price          decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	DepositAmount  decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"deposit_amount"`
	DepositPaid    bool              `gorm:"not null;default:false" json:"deposit_paid"`
	DepositPaidAt  *time.Time        `json:"deposit_paid_at,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	GoogleEventID  string            `gorm:"size:255" json:"google_event_id,omitempty"`
	CreatedByID    *string           `gorm:"type:uuid" json:"created_by_id,omitempty"`

	// Relationships
	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}
