package models

// Tag labels clients, for example "VIP" or "fine line".
type Tag struct {
	Base
	Name  string `gorm:"size:50;not null" json:"name"`
	Color string `gorm:"size:7;not null;default:'#6366f1'" json:"color"`
}
