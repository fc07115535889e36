package models

// Reference is an inspiration image uploaded for a client.
type Reference struct {
	Base
	ClientID string `gorm:"type:uuid;not null;index" json:"client_id"`
	ImageURL string `gorm:"not null" json:"image_url"`
	Notes    string `json:"notes,omitempty"`
}

// TableName avoids the reserved word "references".
func (Reference) TableName() string { return "client_references" }
