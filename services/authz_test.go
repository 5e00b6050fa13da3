package services

import (
	"errors"
	"testing"
	"time"

	"taskory/models"
)

func addMember(t *testing.T, a *Authorizer, projectID, userID uint, role string) {
	t.Helper()
	member := models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now(),
	}
	if err := a.DB.Create(&member).Error; err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
}

func TestRequireMember(t *testing.T) {
	db := openTestDB(t)
	authz := NewAuthorizer(db)

	owner := seedUser(t, db, "owner")
	outsider := seedUser(t, db, "outsider")
	project := seedProject(t, db, owner)
	addMember(t, authz, project.ID, owner.ID, models.RoleProjectManager)

	if err := authz.RequireMember(owner, project.ID); err != nil {
		t.Fatalf("member should pass, got %v", err)
	}
	if err := authz.RequireMember(outsider, project.ID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("outsider should be denied, got %v", err)
	}
}

func TestRequireMemberAdminBypass(t *testing.T) {
	db := openTestDB(t)
	authz := NewAuthorizer(db)

	owner := seedUser(t, db, "owner")
	project := seedProject(t, db, owner)

	admin := seedUser(t, db, "root")
	admin.IsAdmin = true
	if err := db.Save(admin).Error; err != nil {
		t.Fatalf("failed to flag admin: %v", err)
	}

	// No membership row, but global admins bypass the check
	if err := authz.RequireMember(admin, project.ID); err != nil {
		t.Fatalf("admin should bypass membership, got %v", err)
	}
	if err := authz.RequireManager(admin, project.ID); err != nil {
		t.Fatalf("admin should bypass manager check, got %v", err)
	}
}

func TestRequireManagerRejectsPlainMember(t *testing.T) {
	db := openTestDB(t)
	authz := NewAuthorizer(db)

	owner := seedUser(t, db, "owner")
	dev := seedUser(t, db, "dev")
	project := seedProject(t, db, owner)
	addMember(t, authz, project.ID, owner.ID, models.RoleProjectManager)
	addMember(t, authz, project.ID, dev.ID, models.RoleDeveloper)

	if err := authz.RequireManager(owner, project.ID); err != nil {
		t.Fatalf("project manager should pass, got %v", err)
	}
	if err := authz.RequireManager(dev, project.ID); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("developer should lack the role, got %v", err)
	}
}

func TestRequireManagerOrOwner(t *testing.T) {
	db := openTestDB(t)
	authz := NewAuthorizer(db)

	owner := seedUser(t, db, "owner")
	dev := seedUser(t, db, "dev")
	outsider := seedUser(t, db, "outsider")
	project := seedProject(t, db, owner)
	addMember(t, authz, project.ID, owner.ID, models.RoleProjectManager)
	addMember(t, authz, project.ID, dev.ID, models.RoleDeveloper)

	// Owners of the resource pass as long as they are still members
	if err := authz.RequireManagerOrOwner(dev, project.ID, dev.ID); err != nil {
		t.Fatalf("owner-member should pass, got %v", err)
	}
	// Managers may touch others' resources
	if err := authz.RequireManagerOrOwner(owner, project.ID, dev.ID); err != nil {
		t.Fatalf("manager should pass, got %v", err)
	}
	// Plain members may not touch others' resources
	if err := authz.RequireManagerOrOwner(dev, project.ID, owner.ID); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("member editing another's resource should fail, got %v", err)
	}
	// Ownership does not rescue a non-member
	if err := authz.RequireManagerOrOwner(outsider, project.ID, outsider.ID); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("non-member owner should be denied, got %v", err)
	}
}

func TestProjectIDResolvers(t *testing.T) {
	db := openTestDB(t)
	authz := NewAuthorizer(db)

	owner := seedUser(t, db, "owner")
	project := seedProject(t, db, owner)

	milestone := models.Milestone{ProjectID: project.ID, Name: "M1"}
	if err := db.Create(&milestone).Error; err != nil {
		t.Fatalf("failed to create milestone: %v", err)
	}
	task := models.Task{ProjectID: project.ID, CreatedBy: owner.ID, Title: "T1"}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	if got, err := authz.ProjectIDForTask(task.ID); err != nil || got != project.ID {
		t.Fatalf("ProjectIDForTask = %d, %v; want %d", got, err, project.ID)
	}
	if got, err := authz.ProjectIDForMilestone(milestone.ID); err != nil || got != project.ID {
		t.Fatalf("ProjectIDForMilestone = %d, %v; want %d", got, err, project.ID)
	}

	comment := models.Comment{TaskID: &task.ID, UserID: owner.ID, Content: "hi"}
	if got, err := authz.ProjectIDForComment(&comment); err != nil || got != project.ID {
		t.Fatalf("ProjectIDForComment = %d, %v; want %d", got, err, project.ID)
	}
}

func TestIsAuthzError(t *testing.T) {
	if !IsAuthzError(ErrAccessDenied) || !IsAuthzError(ErrInsufficientRole) {
		t.Fatal("sentinels should be recognized")
	}
	if IsAuthzError(errors.New("boom")) {
		t.Fatal("arbitrary errors should not be recognized")
	}
}
