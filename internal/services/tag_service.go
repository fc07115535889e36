package services

import (
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/models"
)

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#6366f1"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// tagService handles client tags.
type tagService struct {
	db *gorm.DB
}

// NewTagService creates a new TagServicer.
func NewTagService(db *gorm.DB) TagServicer {
	return &tagService{db: db}
}

// ListTags returns every tag sorted by name.
func (s *tagService) ListTags() ([]models.Tag, error) {
	tags := []models.Tag{}
	if err := s.db.Order("name ASC").Find(&tags).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tags, nil
}

func (s *tagService) find(id string) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.Where("id = ?", id).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTagNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tag, nil
}

func (s *tagService) nameTaken(name, excludeID string) (bool, error) {
	query := s.db.Model(&models.Tag{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateTag creates a tag. Names are unique regardless of case.
func (s *tagService) CreateTag(name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tag name is required")
	}
	if color == "" {
		color = DefaultTagColor
	}
	if !hexColor.MatchString(color) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "color must be a hex value like #6366f1")
	}

	taken, err := s.nameTaken(name, "")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if taken {
		return nil, apperrors.ErrDuplicateTag
	}

	tag := &models.Tag{Name: name, Color: color}
	if err := s.db.Create(tag).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tag, nil
}

// UpdateTag renames or recolors a tag.
func (s *tagService) UpdateTag(id string, name, color *string) (*models.Tag, error) {
	tag, err := s.find(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tag name cannot be empty")
		}
		taken, err := s.nameTaken(trimmed, id)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if taken {
			return nil, apperrors.ErrDuplicateTag
		}
		updates["name"] = trimmed
	}
	if color != nil {
		if !hexColor.MatchString(*color) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "color must be a hex value like #6366f1")
		}
		updates["color"] = *color
	}

	if len(updates) > 0 {
		if err := s.db.Model(tag).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.find(id)
}

// DeleteTag removes a tag and detaches it from every client.
func (s *tagService) DeleteTag(id string) error {
	tag, err := s.find(id)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&models.ClientTag{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(tag).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}
