package controller_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"taskory/models"
	"taskory/services"
)

func TestNotificationReadFlow(t *testing.T) {
	app, db := setupApp(t)
	alice, aliceToken := createUser(t, db, "alice", false)
	bob, _ := createUser(t, db, "bob", false)

	for i := 0; i < 3; i++ {
		n := models.Notification{UserID: alice.ID, Type: models.NotificationTypeSystem, Title: "ping"}
		if err := db.Create(&n).Error; err != nil {
			t.Fatalf("failed to seed notification: %v", err)
		}
	}
	other := models.Notification{UserID: bob.ID, Type: models.NotificationTypeSystem, Title: "ping"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("failed to seed notification: %v", err)
	}

	resp, body := request(t, app, fiber.MethodGet, "/api/notifications/unread-count", aliceToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unread-count returned %d: %v", resp.StatusCode, body)
	}
	if data := body["data"].(map[string]interface{}); data["unread"].(float64) != 3 {
		t.Fatalf("unread = %v, want 3", data["unread"])
	}

	// Notifications addressed to others are invisible
	resp, _ = request(t, app, fiber.MethodPatch, "/api/notifications/"+itoa(other.ID)+"/read", aliceToken, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("foreign mark-read returned %d, want 404", resp.StatusCode)
	}

	resp, _ = request(t, app, fiber.MethodPost, "/api/notifications/mark-all-read", aliceToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("mark-all-read returned %d, want 200", resp.StatusCode)
	}

	resp, body = request(t, app, fiber.MethodGet, "/api/notifications/unread-count", aliceToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unread-count returned %d: %v", resp.StatusCode, body)
	}
	if data := body["data"].(map[string]interface{}); data["unread"].(float64) != 0 {
		t.Fatalf("unread after mark-all = %v, want 0", data["unread"])
	}
}

func TestSendNotificationAdminOnly(t *testing.T) {
	app, db := setupApp(t)
	alice, aliceToken := createUser(t, db, "alice", false)
	bob, _ := createUser(t, db, "bob", false)
	_, adminToken := createUser(t, db, "root", true)

	payload := fiber.Map{
		"user_ids": []uint{alice.ID, bob.ID, 9999},
		"title":    "Maintenance window",
	}

	resp, _ := request(t, app, fiber.MethodPost, "/api/notifications/send", aliceToken, payload)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("non-admin send returned %d, want 403", resp.StatusCode)
	}

	resp, body := request(t, app, fiber.MethodPost, "/api/notifications/send", adminToken, payload)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("admin send returned %d: %v", resp.StatusCode, body)
	}
	results := body["data"].([]interface{})
	if len(results) != 3 {
		t.Fatalf("send returned %d results, want 3", len(results))
	}
	last := results[2].(map[string]interface{})
	if last["success"].(bool) {
		t.Fatal("unknown user id should fail per-item")
	}

	var count int64
	if err := db.Model(&models.Notification{}).Where("title = ?", "Maintenance window").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("created %d notifications, want 2", count)
	}
}

func TestCleanupNotificationsSweepsOldRead(t *testing.T) {
	app, db := setupApp(t)
	alice, _ := createUser(t, db, "alice", false)
	_, adminToken := createUser(t, db, "root", true)

	n := models.Notification{UserID: alice.ID, Type: models.NotificationTypeSystem, Title: "old", IsRead: true}
	if err := db.Create(&n).Error; err != nil {
		t.Fatalf("failed to seed notification: %v", err)
	}
	stale := time.Now().Add(-services.NotificationRetention - time.Hour)
	if err := db.Model(&n).Update("created_at", stale).Error; err != nil {
		t.Fatalf("failed to backdate notification: %v", err)
	}

	resp, body := request(t, app, fiber.MethodPost, "/api/notifications/cleanup", adminToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("cleanup returned %d: %v", resp.StatusCode, body)
	}

	var count int64
	if err := db.Model(&models.Notification{}).Where("id = ?", n.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatal("old read notification should be swept")
	}
}
