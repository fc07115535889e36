package models

import "time"

// Client represents a studio customer.
type Client struct {
	Base
	Name         string     `gorm:"size:100;not null;index" json:"name"`
	Phone        string     `gorm:"size:30;not null" json:"phone"`
	Email        string     `gorm:"size:255" json:"email,omitempty"`
	Instagram    string     `gorm:"size:100" json:"instagram,omitempty"`
	BirthDate    *time.Time `gorm:"type:date" json:"birth_date,omitempty"`
	Address      string     `json:"address,omitempty"`
	City         string     `gorm:"size:100" json:"city,omitempty"`
	Allergies    string     `json:"allergies,omitempty"`
	MedicalNotes string     `json:"medical_notes,omitempty"`
	Notes        string     `json:"notes,omitempty"`

	// Relationships
	Tags       []Tag       `gorm:"many2many:client_tags;" json:"tags"`
	Tattoos    []Tattoo    `gorm:"foreignKey:ClientID" json:"tattoos,omitempty"`
	References []Reference `gorm:"foreignKey:ClientID" json:"references,omitempty"`
}

// ClientTag is the join row between clients and tags.
type ClientTag struct {
	ClientID string `gorm:"type:uuid;primaryKey" json:"client_id"`
	TagID    string `gorm:"type:uuid;primaryKey" json:"tag_id"`
}
