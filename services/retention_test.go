package services

import (
	"testing"
	"time"

	"taskory/models"
)

func TestSweepNotifications(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "dave")

	seed := func(isRead bool, age time.Duration) uint {
		n := models.Notification{
			UserID: user.ID,
			Type:   models.NotificationTypeSystem,
			Title:  "hello",
			IsRead: isRead,
		}
		if err := db.Create(&n).Error; err != nil {
			t.Fatalf("failed to create notification: %v", err)
		}
		if age > 0 {
			stale := time.Now().Add(-age)
			if err := db.Model(&n).Update("created_at", stale).Error; err != nil {
				t.Fatalf("failed to backdate notification: %v", err)
			}
		}
		return n.ID
	}

	oldRead := seed(true, NotificationRetention+time.Hour)
	recentRead := seed(true, time.Hour)
	oldUnread := seed(false, NotificationRetention+time.Hour)

	swept, err := SweepNotifications(db)
	if err != nil {
		t.Fatalf("SweepNotifications failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept %d notifications, want 1", swept)
	}

	var count int64
	if err := db.Model(&models.Notification{}).Where("id = ?", oldRead).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatal("old read notification should be deleted")
	}

	for _, id := range []uint{recentRead, oldUnread} {
		if err := db.Model(&models.Notification{}).Where("id = ?", id).Count(&count).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("notification %d should survive the sweep", id)
		}
	}
}
