package models

import "gorm.io/gorm"

// Notification types
const (
	NotificationTypeTask      = "task"
	NotificationTypeProject   = "project"
	NotificationTypeMilestone = "milestone"
	NotificationTypeComment   = "comment"
	NotificationTypeSystem    = "system"
)

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeTask, NotificationTypeProject, NotificationTypeMilestone,
		NotificationTypeComment, NotificationTypeSystem:
		return true
	}
	return false
}

// Notification is addressed to a single user
type Notification struct {
	gorm.Model
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Type    string `gorm:"default:'system';index" json:"type"`
	Title   string `gorm:"not null" json:"title"`
	Message string `json:"message"`
	IsRead  bool   `gorm:"default:false;index" json:"is_read"`

	// Optional JSON payload and a reference to the entity that triggered it
	Payload     string `json:"payload,omitempty"`
	RelatedType string `json:"related_type,omitempty"`
	RelatedID   *uint  `json:"related_id,omitempty"`

	User User `json:"-"`
}
