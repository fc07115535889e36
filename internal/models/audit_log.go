package models

import "gorm.io/datatypes"

// AuditLog records who changed which studio record.
type AuditLog struct {
	Base
	UserID       string            `gorm:"type:uuid;not null;index" json:"user_id"`
	Action       string            `gorm:"size:50;not null" json:"action"`
	ResourceType string            `gorm:"size:50;not null" json:"resource_type"`
	ResourceID   string            `gorm:"type:uuid" json:"resource_id"`
	IPAddress    string            `gorm:"size:45" json:"ip_address"`
	Changes      datatypes.JSONMap `gorm:"type:text" json:"changes,omitempty"`
}
