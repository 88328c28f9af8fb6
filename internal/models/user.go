package models

import "time"

// User represents a team member who records investments and rates brokers.
type User struct {
	Base
	Email                  string     `gorm:"uniqueIndex;not null" json:"email"`
	Username               string     `gorm:"uniqueIndex;not null" json:"username"`
	Password               string     `gorm:"not null" json:"-"`
	FullName               string     `json:"full_name"`
	IsAdmin                bool       `gorm:"default:false" json:"is_admin"`
	IsActive               bool       `gorm:"default:true" json:"is_active"`
	RefreshTokenHash       string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts    int        `gorm:"default:0" json:"-"`
	LockedUntil            *time.Time `json:"-"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
	LastNotificationReadAt *time.Time `json:"last_notification_read_at,omitempty"`
}
