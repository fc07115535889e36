package services

import (
	"errors"
	"net/mail"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/models"
	"tattootrack/internal/pagination"
	"tattootrack/internal/schedule"
)

// Client field limits.
const (
	MinClientNameLength = 2
	MinPhoneLength      = 10
)

// clientService handles client records and their tags.
type clientService struct {
	db *gorm.DB
}

// NewClientService creates a new ClientServicer.
func NewClientService(db *gorm.DB) ClientServicer {
	return &clientService{db: db}
}

// ListClients returns a page of clients, newest first. Search matches name,
// phone, email or instagram case-insensitively; the tag filter matches any
// of the given tags.
func (s *clientService) ListClients(page pagination.PageRequest, filter ClientFilter) (*pagination.PageResponse[models.Client], error) {
	base := s.db.Model(&models.Client{})

	if filter.Search != nil {
		if term := strings.TrimSpace(*filter.Search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			base = base.Where(
				"LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(email) LIKE ? OR LOWER(instagram) LIKE ?",
				like, like, like, like,
			)
		}
	}
	if len(filter.TagIDs) > 0 {
		base = base.Where("id IN (?)",
			s.db.Model(&models.ClientTag{}).Select("client_id").Where("tag_id IN ?", filter.TagIDs))
	}
	base = base.Order("created_at DESC")

	result, err := pagination.Fetch[models.Client](base, page, func(db *gorm.DB) *gorm.DB {
		return db.Preload("Tags")
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetClient retrieves a client with tags, tattoos and references.
func (s *clientService) GetClient(id string) (*models.Client, error) {
	var client models.Client
	err := s.db.
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Preload("Tattoos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("References", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Where("id = ?", id).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrClientNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &client, nil
}

func validateClientInput(input ClientInput, create bool) error {
	if create && (input.Name == nil || input.Phone == nil) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "name and phone are required")
	}
	if input.Name != nil && len(strings.TrimSpace(*input.Name)) < MinClientNameLength {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "name must have at least 2 characters")
	}
	if input.Phone != nil && len(strings.TrimSpace(*input.Phone)) < MinPhoneLength {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "phone must have at least 10 characters")
	}
	if input.Email != nil && *input.Email != "" {
		if _, err := mail.ParseAddress(*input.Email); err != nil {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "email is invalid")
		}
	}
	return nil
}

// loadTags resolves tag IDs, failing if any is unknown.
func loadTags(tx *gorm.DB, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return []models.Tag{}, nil
	}
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var tags []models.Tag
	if err := tx.Where("id IN ?", unique).Find(&tags).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(tags) != len(unique) {
		return nil, apperrors.ErrTagNotFound
	}
	return tags, nil
}

func applyClientInput(c *models.Client, input ClientInput) {
	if input.Name != nil {
		c.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		c.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Email != nil {
		c.Email = strings.TrimSpace(*input.Email)
	}
	if input.Instagram != nil {
		c.Instagram = strings.TrimSpace(*input.Instagram)
	}
	if input.BirthDate != nil {
		d := schedule.NormalizeDay(*input.BirthDate)
		c.BirthDate = &d
	}
	if input.Address != nil {
		c.Address = *input.Address
	}
	if input.City != nil {
		c.City = *input.City
	}
	if input.Allergies != nil {
		c.Allergies = *input.Allergies
	}
	if input.MedicalNotes != nil {
		c.MedicalNotes = *input.MedicalNotes
	}
	if input.Notes != nil {
		c.Notes = *input.Notes
	}
}

// CreateClient creates a client and attaches the given tags.
func (s *clientService) CreateClient(input ClientInput) (*models.Client, error) {
	if err := validateClientInput(input, true); err != nil {
		return nil, err
	}

	client := &models.Client{}
	applyClientInput(client, input)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		tags, err := loadTags(tx, input.TagIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(client).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, tag := range tags {
			if err := tx.Create(&models.ClientTag{ClientID: client.ID, TagID: tag.ID}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetClient(client.ID)
}

// UpdateClient applies a partial update. A non-nil TagIDs replaces the
// client's tags.
func (s *clientService) UpdateClient(id string, input ClientInput) (*models.Client, error) {
	if err := validateClientInput(input, false); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.Where("id = ?", id).First(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrClientNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		applyClientInput(&client, input)
		if err := tx.Omit(clause.Associations).Save(&client).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if input.TagIDs != nil {
			tags, err := loadTags(tx, input.TagIDs)
			if err != nil {
				return err
			}
			if err := tx.Where("client_id = ?", id).Delete(&models.ClientTag{}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			for _, tag := range tags {
				if err := tx.Create(&models.ClientTag{ClientID: id, TagID: tag.ID}).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetClient(id)
}

// DeleteClient removes a client with its tags, tattoos, references and
// appointments. Transactions of those appointments are kept and unlinked.
func (s *clientService) DeleteClient(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.Where("id = ?", id).First(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrClientNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		appointmentIDs := tx.Model(&models.Appointment{}).Select("id").Where("client_id = ?", id)
		steps := []*gorm.DB{
			tx.Model(&models.Transaction{}).Where("appointment_id IN (?)", appointmentIDs).Update("appointment_id", nil),
			tx.Where("client_id = ?", id).Delete(&models.Appointment{}),
			tx.Where("client_id = ?", id).Delete(&models.ClientTag{}),
			tx.Where("client_id = ?", id).Delete(&models.Tattoo{}),
			tx.Where("client_id = ?", id).Delete(&models.Reference{}),
			tx.Delete(&client),
		}
		for _, step := range steps {
			if step.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, step.Error)
			}
		}
		return nil
	})
}

// AddTag attaches a tag to a client. Adding a tag twice is a no-op.
func (s *clientService) AddTag(clientID, tagID string) (*models.Client, error) {
	if _, err := s.GetClient(clientID); err != nil {
		return nil, err
	}
	var tag models.Tag
	if err := s.db.Where("id = ?", tagID).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTagNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ClientTag{ClientID: clientID, TagID: tagID}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetClient(clientID)
}

// RemoveTag detaches a tag from a client.
func (s *clientService) RemoveTag(clientID, tagID string) (*models.Client, error) {
	if _, err := s.GetClient(clientID); err != nil {
		return nil, err
	}
	result := s.db.Where("client_id = ? AND tag_id = ?", clientID, tagID).Delete(&models.ClientTag{})
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrTagNotFound
	}
	return s.GetClient(clientID)
}
