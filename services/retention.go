package services

import (
	"time"

	"gorm.io/gorm"

	"taskory/models"
)

// NotificationRetention is how long read notifications are kept.
const NotificationRetention = 30 * 24 * time.Hour

// SweepNotifications deletes read notifications older than the retention
// threshold. Unread notifications are never swept.
func SweepNotifications(db *gorm.DB) (int64, error) {
	cutoff := time.Now().Add(-NotificationRetention)
	result := db.Unscoped().
		Where("is_read = true AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
