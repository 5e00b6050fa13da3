package controller_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"

	"taskory/models"
)

func createComment(t *testing.T, app *fiber.App, token string, fields fiber.Map) uint {
	t.Helper()

	resp, body := request(t, app, fiber.MethodPost, "/api/comments", token, fields)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create comment returned %d: %v", resp.StatusCode, body)
	}
	return entityID(t, body)
}

func TestCommentMustTargetExactlyOneEntity(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	projectID := createProject(t, app, token, "Apollo")
	taskID := createTask(t, app, token, fiber.Map{"project_id": projectID, "title": "T"})

	// No target
	resp, _ := request(t, app, fiber.MethodPost, "/api/comments", token, fiber.Map{
		"content": "hello",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("comment without target returned %d, want 400", resp.StatusCode)
	}

	// Two targets
	resp, _ = request(t, app, fiber.MethodPost, "/api/comments", token, fiber.Map{
		"content":    "hello",
		"task_id":    taskID,
		"project_id": projectID,
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("comment with two targets returned %d, want 400", resp.StatusCode)
	}
}

func TestRepliesNestOneLevelOnly(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	projectID := createProject(t, app, token, "Apollo")
	taskID := createTask(t, app, token, fiber.Map{"project_id": projectID, "title": "T"})

	parentID := createComment(t, app, token, fiber.Map{
		"task_id": taskID,
		"content": "first",
	})
	replyID := createComment(t, app, token, fiber.Map{
		"task_id":           taskID,
		"parent_comment_id": parentID,
		"content":           "a reply",
	})

	resp, body := request(t, app, fiber.MethodPost, "/api/comments", token, fiber.Map{
		"task_id":           taskID,
		"parent_comment_id": replyID,
		"content":           "a reply to a reply",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("nested reply returned %d, want 400: %v", resp.StatusCode, body)
	}
}

func TestDeleteCommentBlockedByReplies(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	projectID := createProject(t, app, token, "Apollo")
	taskID := createTask(t, app, token, fiber.Map{"project_id": projectID, "title": "T"})

	parentID := createComment(t, app, token, fiber.Map{"task_id": taskID, "content": "first"})
	replyID := createComment(t, app, token, fiber.Map{
		"task_id":           taskID,
		"parent_comment_id": parentID,
		"content":           "a reply",
	})

	resp, _ := request(t, app, fiber.MethodDelete, "/api/comments/"+itoa(parentID), token, nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("delete with replies returned %d, want 400", resp.StatusCode)
	}

	resp, _ = request(t, app, fiber.MethodDelete, "/api/comments/"+itoa(replyID), token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete reply returned %d, want 200", resp.StatusCode)
	}
	resp, _ = request(t, app, fiber.MethodDelete, "/api/comments/"+itoa(parentID), token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete parent after reply returned %d, want 200", resp.StatusCode)
	}
}

func TestUpdateCommentAuthorOnly(t *testing.T) {
	app, db := setupApp(t)
	_, aliceToken := createUser(t, db, "alice", false)
	bob, bobToken := createUser(t, db, "bob", false)

	projectID := createProject(t, app, aliceToken, "Apollo")
	addProjectMember(t, app, aliceToken, projectID, bob.ID, models.RoleDeveloper)
	taskID := createTask(t, app, aliceToken, fiber.Map{"project_id": projectID, "title": "T"})

	commentID := createComment(t, app, aliceToken, fiber.Map{"task_id": taskID, "content": "first"})

	resp, _ := request(t, app, fiber.MethodPut, "/api/comments/"+itoa(commentID), bobToken, fiber.Map{
		"content": "hijacked",
	})
	if resp.StatusCode == fiber.StatusOK {
		t.Fatal("non-author edit should be refused")
	}

	resp, body := request(t, app, fiber.MethodPut, "/api/comments/"+itoa(commentID), aliceToken, fiber.Map{
		"content": "edited",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("author edit returned %d: %v", resp.StatusCode, body)
	}

	var comment models.Comment
	if err := db.First(&comment, commentID).Error; err != nil {
		t.Fatalf("failed to reload comment: %v", err)
	}
	if !comment.Edited || comment.Content != "edited" {
		t.Fatalf("comment = %+v, want edited content and flag", comment)
	}
}
