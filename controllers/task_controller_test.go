package controller_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"

	"taskory/models"
)

func TestTaskCreationValidatesReferences(t *testing.T) {
	app, db := setupApp(t)
	_, aliceToken := createUser(t, db, "alice", false)
	bob, _ := createUser(t, db, "bob", false)

	projectID := createProject(t, app, aliceToken, "Apollo")

	// Assignee must already be a member
	resp, body := request(t, app, fiber.MethodPost, "/api/tasks", aliceToken, fiber.Map{
		"project_id":  projectID,
		"title":       "Design review",
		"assignee_id": bob.ID,
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("assign to non-member returned %d, want 400: %v", resp.StatusCode, body)
	}

	// Milestone must belong to the same project
	otherProjectID := createProject(t, app, aliceToken, "Borealis")
	resp, body = request(t, app, fiber.MethodPost, "/api/milestones", aliceToken, fiber.Map{
		"project_id": otherProjectID,
		"name":       "Kickoff",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create milestone returned %d: %v", resp.StatusCode, body)
	}
	milestoneID := entityID(t, body)

	resp, _ = request(t, app, fiber.MethodPost, "/api/tasks", aliceToken, fiber.Map{
		"project_id":   projectID,
		"title":        "Design review",
		"milestone_id": milestoneID,
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("foreign milestone returned %d, want 400", resp.StatusCode)
	}
}

func TestTaskStatusDeniedForNonMembers(t *testing.T) {
	app, db := setupApp(t)
	_, aliceToken := createUser(t, db, "alice", false)
	_, bobToken := createUser(t, db, "bob", false)
	_, adminToken := createUser(t, db, "root", true)

	projectID := createProject(t, app, aliceToken, "Apollo")
	taskID := createTask(t, app, aliceToken, fiber.Map{
		"project_id": projectID,
		"title":      "Ship it",
	})

	resp, body := request(t, app, fiber.MethodPatch, "/api/tasks/"+itoa(taskID)+"/status", bobToken, fiber.Map{
		"status": models.TaskStatusInProgress,
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("non-member status change returned %d, want 400: %v", resp.StatusCode, body)
	}

	// Global admins bypass the membership requirement
	resp, _ = request(t, app, fiber.MethodPatch, "/api/tasks/"+itoa(taskID)+"/status", adminToken, fiber.Map{
		"status": models.TaskStatusInProgress,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("admin status change returned %d, want 200", resp.StatusCode)
	}
}

func TestTaskLifecycleUpdatesProgress(t *testing.T) {
	app, db := setupApp(t)
	_, aliceToken := createUser(t, db, "alice", false)
	bob, bobToken := createUser(t, db, "bob", false)

	projectID := createProject(t, app, aliceToken, "Apollo")
	addProjectMember(t, app, aliceToken, projectID, bob.ID, models.RoleDeveloper)

	resp, body := request(t, app, fiber.MethodPost, "/api/milestones", aliceToken, fiber.Map{
		"project_id": projectID,
		"name":       "Beta",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create milestone returned %d: %v", resp.StatusCode, body)
	}
	milestoneID := entityID(t, body)

	taskID := createTask(t, app, aliceToken, fiber.Map{
		"project_id":   projectID,
		"milestone_id": milestoneID,
		"title":        "Ship it",
	})

	resp, _ = request(t, app, fiber.MethodPatch, "/api/tasks/"+itoa(taskID)+"/assign", aliceToken, fiber.Map{
		"assignee_id": bob.ID,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("assign returned %d, want 200", resp.StatusCode)
	}

	// The assignee completes the task
	resp, _ = request(t, app, fiber.MethodPatch, "/api/tasks/"+itoa(taskID)+"/status", bobToken, fiber.Map{
		"status": models.TaskStatusCompleted,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("complete returned %d, want 200", resp.StatusCode)
	}

	var task models.Task
	if err := db.First(&task, taskID).Error; err != nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if task.ProgressPercentage != 100 {
		t.Fatalf("completed task progress = %d, want 100", task.ProgressPercentage)
	}

	// Milestone stats reflect the completion
	resp, body = request(t, app, fiber.MethodGet, "/api/milestones/"+itoa(milestoneID)+"/stats", aliceToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("milestone stats returned %d: %v", resp.StatusCode, body)
	}
	stats := body["data"].(map[string]interface{})
	if stats["completion_percentage"].(float64) != 100 {
		t.Fatalf("milestone completion = %v, want 100", stats["completion_percentage"])
	}

	// Project progress is synced on read
	resp, body = request(t, app, fiber.MethodGet, "/api/projects/"+itoa(projectID), aliceToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("project read returned %d: %v", resp.StatusCode, body)
	}
	project := body["data"].(map[string]interface{})
	if project["progress_percentage"].(float64) != 100 {
		t.Fatalf("project progress = %v, want 100", project["progress_percentage"])
	}
}

func TestDeleteTaskBlockedBySubtasks(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	projectID := createProject(t, app, token, "Apollo")
	parentID := createTask(t, app, token, fiber.Map{
		"project_id": projectID,
		"title":      "Parent",
	})
	childID := createTask(t, app, token, fiber.Map{
		"project_id":     projectID,
		"parent_task_id": parentID,
		"title":          "Child",
	})

	resp, _ := request(t, app, fiber.MethodDelete, "/api/tasks/"+itoa(parentID), token, nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("delete with subtasks returned %d, want 400", resp.StatusCode)
	}

	resp, _ = request(t, app, fiber.MethodDelete, "/api/tasks/"+itoa(childID), token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete subtask returned %d, want 200", resp.StatusCode)
	}
	resp, _ = request(t, app, fiber.MethodDelete, "/api/tasks/"+itoa(parentID), token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete parent after subtask returned %d, want 200", resp.StatusCode)
	}
}

func TestTaskProgressBounds(t *testing.T) {
	app, db := setupApp(t)
	_, token := createUser(t, db, "alice", false)

	projectID := createProject(t, app, token, "Apollo")
	taskID := createTask(t, app, token, fiber.Map{
		"project_id": projectID,
		"title":      "Ship it",
	})

	resp, _ := request(t, app, fiber.MethodPatch, "/api/tasks/"+itoa(taskID)+"/progress", token, fiber.Map{
		"progress_percentage": 150,
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("progress 150 returned %d, want 400", resp.StatusCode)
	}

	resp, _ = request(t, app, fiber.MethodPatch, "/api/tasks/"+itoa(taskID)+"/progress", token, fiber.Map{
		"progress_percentage": 60,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("progress 60 returned %d, want 200", resp.StatusCode)
	}
}
