package controller_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"taskory/models"
)

func createInvitation(t *testing.T, app *fiber.App, token string, fields fiber.Map) uint {
	t.Helper()

	resp, body := request(t, app, fiber.MethodPost, "/api/invitations", token, fields)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create invitation returned %d: %v", resp.StatusCode, body)
	}
	return entityID(t, body)
}

func TestInvitationAcceptFlow(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	projectID := createProject(t, app, token, "Apollo")
	invitationID := createInvitation(t, app, token, fiber.Map{
		"email":      "newbie@example.com",
		"role":       models.RoleDeveloper,
		"project_id": projectID,
	})

	// The raw token never leaves the API response, so read it from storage
	var invitation models.Invitation
	if err := db.First(&invitation, invitationID).Error; err != nil {
		t.Fatalf("failed to load invitation: %v", err)
	}
	if invitation.Status != models.InvitationStatusPending {
		t.Fatalf("new invitation status = %q, want pending", invitation.Status)
	}

	resp, body := request(t, app, fiber.MethodGet, "/api/invitations/token/"+invitation.Token, "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("token lookup returned %d: %v", resp.StatusCode, body)
	}
	lookup := body["data"].(map[string]interface{})
	if lookup["email"].(string) != "newbie@example.com" || lookup["expired"].(bool) {
		t.Fatalf("unexpected lookup payload: %v", lookup)
	}

	resp, body = request(t, app, fiber.MethodPost, "/api/invitations/token/"+invitation.Token+"/accept", "", fiber.Map{
		"username": "newbie",
		"password": "password123",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("accept returned %d: %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	if data["access_token"].(string) == "" {
		t.Fatal("accept should return a token pair")
	}

	var user models.User
	if err := db.Where("email = ?", "newbie@example.com").First(&user).Error; err != nil {
		t.Fatalf("provisioned user missing: %v", err)
	}
	var member models.ProjectMember
	if err := db.Where("project_id = ? AND user_id = ?", projectID, user.ID).First(&member).Error; err != nil {
		t.Fatalf("membership missing: %v", err)
	}
	if member.Role != models.RoleDeveloper {
		t.Fatalf("member role = %q, want %q", member.Role, models.RoleDeveloper)
	}

	// A consumed token cannot be accepted again
	resp, _ = request(t, app, fiber.MethodPost, "/api/invitations/token/"+invitation.Token+"/accept", "", fiber.Map{
		"username": "newbie2",
		"password": "password123",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("second accept returned %d, want 400", resp.StatusCode)
	}
}

func TestExpiredInvitationCannotBeAccepted(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	invitationID := createInvitation(t, app, token, fiber.Map{
		"email": "late@example.com",
	})

	var invitation models.Invitation
	if err := db.First(&invitation, invitationID).Error; err != nil {
		t.Fatalf("failed to load invitation: %v", err)
	}
	stale := time.Now().Add(-time.Hour)
	if err := db.Model(&invitation).Update("expires_at", stale).Error; err != nil {
		t.Fatalf("failed to expire invitation: %v", err)
	}

	resp, body := request(t, app, fiber.MethodPost, "/api/invitations/token/"+invitation.Token+"/accept", "", fiber.Map{
		"username": "late",
		"password": "password123",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expired accept returned %d, want 400: %v", resp.StatusCode, body)
	}

	// Status stays pending; resend regenerates the token and expiry
	resp, _ = request(t, app, fiber.MethodPost, "/api/invitations/"+itoa(invitationID)+"/resend", token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("resend returned %d, want 200", resp.StatusCode)
	}

	var resent models.Invitation
	if err := db.First(&resent, invitationID).Error; err != nil {
		t.Fatalf("failed to reload invitation: %v", err)
	}
	if resent.Token == invitation.Token {
		t.Fatal("resend should rotate the token")
	}
	if !resent.ExpiresAt.After(time.Now()) {
		t.Fatal("resend should push the expiry forward")
	}
}

func TestDeclineAndCancelAreTerminal(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	declinedID := createInvitation(t, app, token, fiber.Map{"email": "one@example.com"})
	cancelledID := createInvitation(t, app, token, fiber.Map{"email": "two@example.com"})

	var declined, cancelled models.Invitation
	if err := db.First(&declined, declinedID).Error; err != nil {
		t.Fatalf("failed to load invitation: %v", err)
	}
	if err := db.First(&cancelled, cancelledID).Error; err != nil {
		t.Fatalf("failed to load invitation: %v", err)
	}

	resp, _ := request(t, app, fiber.MethodPost, "/api/invitations/token/"+declined.Token+"/decline", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("decline returned %d, want 200", resp.StatusCode)
	}
	resp, _ = request(t, app, fiber.MethodPost, "/api/invitations/token/"+declined.Token+"/accept", "", fiber.Map{
		"username": "one",
		"password": "password123",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("accept after decline returned %d, want 400", resp.StatusCode)
	}

	resp, _ = request(t, app, fiber.MethodPost, "/api/invitations/"+itoa(cancelledID)+"/cancel", token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("cancel returned %d, want 200", resp.StatusCode)
	}
	resp, _ = request(t, app, fiber.MethodPost, "/api/invitations/token/"+cancelled.Token+"/accept", "", fiber.Map{
		"username": "two",
		"password": "password123",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("accept after cancel returned %d, want 400", resp.StatusCode)
	}
}

func TestInvitationDuplicateChecks(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	// Existing accounts cannot be invited
	resp, _ := request(t, app, fiber.MethodPost, "/api/invitations", token, fiber.Map{
		"email": "alice@example.com",
	})
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("invite for existing account returned %d, want 409", resp.StatusCode)
	}

	createInvitation(t, app, token, fiber.Map{"email": "fresh@example.com"})
	resp, _ = request(t, app, fiber.MethodPost, "/api/invitations", token, fiber.Map{
		"email": "fresh@example.com",
	})
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("duplicate pending invite returned %d, want 409", resp.StatusCode)
	}
}

func TestBulkInvitationsReportPerItemResults(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	resp, body := request(t, app, fiber.MethodPost, "/api/invitations/bulk", token, fiber.Map{
		"invitations": []fiber.Map{
			{"email": "good@example.com"},
			{"email": "alice@example.com"}, // already registered
		},
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("bulk invite returned %d: %v", resp.StatusCode, body)
	}

	results := body["data"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("bulk returned %d results, want 2", len(results))
	}
	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	if !first["success"].(bool) || second["success"].(bool) {
		t.Fatalf("unexpected bulk results: %v", results)
	}
}
