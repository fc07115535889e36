package services

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tattootrack/internal/logger"
	"tattootrack/internal/models"
)

// auditService appends studio changes to the audit trail.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log appends one audit row. Failures are logged and swallowed so the
// request that triggered them still succeeds. Rows need an owner, so
// anonymous calls are dropped.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	fields := []any{
		"user_id", userID,
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
	}
	if userID == "" {
		logger.Get().Debugw("skipping audit entry without user", fields...)
		return
	}

	entry := models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}
	if len(changes) > 0 {
		entry.Changes = datatypes.JSONMap(changes)
	}

	if err := s.db.Create(&entry).Error; err != nil {
		logger.Get().Errorw("failed to write audit entry", append(fields, "error", err)...)
	}
}
