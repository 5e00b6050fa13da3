package models

import "gorm.io/gorm"

// ActivityLog records who did what to which entity
type ActivityLog struct {
	gorm.Model
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	Action     string `gorm:"not null" json:"action"` // created, updated, deleted, status_changed, assigned
	EntityType string `gorm:"not null;index" json:"entity_type"`
	EntityID   uint   `gorm:"not null" json:"entity_id"`
	Detail     string `json:"detail,omitempty"`

	User User `json:"user,omitempty"`
}

// Setting is a simple key/value store for application-wide settings
type Setting struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `json:"value"`
}
