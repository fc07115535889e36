package models

import "time"

// User is a studio login. Google tokens are stored once the user connects
// their calendar.
type User struct {
	Base
	Username          string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Password          string     `json:"-"`
	Name              string     `gorm:"size:100;not null" json:"name"`
	Picture           string     `json:"picture,omitempty"`
	GoogleEmail       string     `json:"google_email,omitempty"`
	GoogleAccessToken string     `json:"-"`
	GoogleRefresh     string     `gorm:"column:google_refresh_token" json:"-"`
	GoogleTokenExpiry *time.Time `json:"-"`
	CalendarConnected bool       `gorm:"default:false" json:"calendar_connected"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
}
