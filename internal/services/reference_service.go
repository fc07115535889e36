package services

import (
	"context"
	"errors"
	"io"

	"gorm.io/gorm"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/logger"
	"tattootrack/internal/models"
)

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, src io.Reader, size int64) (string, error)
	Remove(url string) error
}

// referenceService handles reference images attached to clients.
type referenceService struct {
	db     *gorm.DB
	images ImageStore
}

// NewReferenceService creates a new ReferenceServicer.
func NewReferenceService(db *gorm.DB, images ImageStore) ReferenceServicer {
	return &referenceService{db: db, images: images}
}

// CreateReference stores the image and attaches it to the client. The file
// is removed again if the row cannot be written.
func (s *referenceService) CreateReference(ctx context.Context, clientID string, image io.Reader, size int64, notes string) (*models.Reference, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", clientID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrClientNotFound
	}

	url, err := s.images.Save(ctx, image, size)
	if err != nil {
		return nil, err
	}

	ref := &models.Reference{ClientID: clientID, ImageURL: url, Notes: notes}
	if err := s.db.WithContext(ctx).Create(ref).Error; err != nil {
		if rmErr := s.images.Remove(url); rmErr != nil {
			logger.Get().Warnw("failed to remove orphaned upload", "url", url, "error", rmErr)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ref, nil
}

// DeleteReference removes the reference and, best effort, its file.
func (s *referenceService) DeleteReference(ctx context.Context, id string) error {
	var ref models.Reference
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrReferenceNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.WithContext(ctx).Delete(&ref).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.images.Remove(ref.ImageURL); err != nil {
		logger.Get().Warnw("failed to remove reference image", "reference_id", id, "error", err)
	}
	return nil
}
