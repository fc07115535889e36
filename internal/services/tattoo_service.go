package services

import (
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/models"
	"tattootrack/internal/schedule"
)

// tattooService handles a client's tattoo history.
type tattooService struct {
	db *gorm.DB
}

// NewTattooService creates a new TattooServicer.
func NewTattooService(db *gorm.DB) TattooServicer {
	return &tattooService{db: db}
}

func (s *tattooService) clientExists(clientID string) error {
	var count int64
	if err := s.db.Model(&models.Client{}).Where("id = ?", clientID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrClientNotFound
	}
	return nil
}

// ListTattoos returns a client's tattoos, newest first.
func (s *tattooService) ListTattoos(clientID string) ([]models.Tattoo, error) {
	if err := s.clientExists(clientID); err != nil {
		return nil, err
	}
	tattoos := []models.Tattoo{}
	if err := s.db.Where("client_id = ?", clientID).Order("created_at DESC").Find(&tattoos).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tattoos, nil
}

func applyTattooInput(t *models.Tattoo, input TattooInput) error {
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if desc == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "description cannot be empty")
		}
		t.Description = desc
	}
	if input.BodyPart != nil {
		part := strings.TrimSpace(*input.BodyPart)
		if part == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "body_part cannot be empty")
		}
		t.BodyPart = part
	}
	if input.Date != nil {
		d := schedule.NormalizeDay(*input.Date)
		t.Date = &d
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "price cannot be negative")
		}
		p := input.Price.Round(2)
		t.Price = &p
	}
	if input.Notes != nil {
		t.Notes = *input.Notes
	}
	if input.Images != nil {
		t.Images = datatypes.NewJSONSlice(input.Images)
	}
	return nil
}

// CreateTattoo records a tattoo for a client.
func (s *tattooService) CreateTattoo(clientID string, input TattooInput) (*models.Tattoo, error) {
	if input.Description == nil || input.BodyPart == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description and body_part are required")
	}
	if err := s.clientExists(clientID); err != nil {
		return nil, err
	}

	tattoo := &models.Tattoo{ClientID: clientID, Images: datatypes.NewJSONSlice([]string{})}
	if err := applyTattooInput(tattoo, input); err != nil {
		return nil, err
	}
	if err := s.db.Create(tattoo).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tattoo, nil
}

// UpdateTattoo applies a partial update.
func (s *tattooService) UpdateTattoo(id string, input TattooInput) (*models.Tattoo, error) {
	var tattoo models.Tattoo
	if err := s.db.Where("id = ?", id).First(&tattoo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTattooNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := applyTattooInput(&tattoo, input); err != nil {
		return nil, err
	}
	if err := s.db.Save(&tattoo).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tattoo, nil
}

// DeleteTattoo removes a tattoo record.
func (s *tattooService) DeleteTattoo(id string) error {
	result := s.db.Where("id = ?", id).Delete(&models.Tattoo{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTattooNotFound
	}
	return nil
}
