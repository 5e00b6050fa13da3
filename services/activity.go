package services

import (
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

// RecordActivity appends an activity log row. Failures are logged and
// swallowed: activity history is a side channel, never a reason to fail
// the request that triggered it.
func RecordActivity(db *gorm.DB, userID uint, action, entityType string, entityID uint, detail string) {
	entry := models.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	}
	if err := db.Create(&entry).Error; err != nil {
		utils.LogError("activity_log", err, map[string]interface{}{
			"user_id":     userID,
			"action":      action,
			"entity_type": entityType,
			"entity_id":   entityID,
		})
	}
}

// Notify creates a notification for a single user. Same best-effort
// contract as RecordActivity.
func Notify(db *gorm.DB, userID uint, notifType, title, message, relatedType string, relatedID *uint) {
	notification := models.Notification{
		UserID:      userID,
		Type:        notifType,
		Title:       title,
		Message:     message,
		RelatedType: relatedType,
		RelatedID:   relatedID,
	}
	if err := db.Create(&notification).Error; err != nil {
		utils.LogError("notification_create", err, map[string]interface{}{
			"user_id": userID,
			"type":    notifType,
		})
	}
}
