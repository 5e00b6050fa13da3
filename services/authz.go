package services

import (
	"errors"

	"gorm.io/gorm"

	"taskory/models"
)

// Authorization failures surfaced to controllers. Both map to a 400
// business-rule response at the route layer.
var (
	ErrAccessDenied     = errors.New("access denied: not a member of this project")
	ErrInsufficientRole = errors.New("insufficient permissions for this operation")
)

// Authorizer resolves project membership and role requirements for every
// entity-scoped operation. Each check queries current database state; there
// is no caching, so authorization always reflects the latest membership rows.
type Authorizer struct {
	DB *gorm.DB
}

func NewAuthorizer(db *gorm.DB) *Authorizer {
	return &Authorizer{DB: db}
}

// Membership returns the caller's membership row for a project.
// Absence means ErrAccessDenied.
func (a *Authorizer) Membership(userID, projectID uint) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := a.DB.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}
	return &member, nil
}

// RequireMember checks that the user may read entities scoped to the project.
// Global admins bypass membership entirely.
func (a *Authorizer) RequireMember(user *models.User, projectID uint) error {
	if user.IsAdmin {
		return nil
	}
	_, err := a.Membership(user.ID, projectID)
	return err
}

// RequireManager checks that the user may perform privileged project
// operations: role changes, deletes with cascading effects, updates of
// others' content. Satisfied by the global admin flag or a
// project_manager/admin membership role.
func (a *Authorizer) RequireManager(user *models.User, projectID uint) error {
	if user.IsAdmin {
		return nil
	}
	member, err := a.Membership(user.ID, projectID)
	if err != nil {
		return err
	}
	if !member.IsManager() {
		return ErrInsufficientRole
	}
	return nil
}

// RequireManagerOrOwner allows either a privileged role or ownership of the
// resource being mutated (e.g. editing one's own comment or time log).
func (a *Authorizer) RequireManagerOrOwner(user *models.User, projectID, ownerID uint) error {
	if user.ID == ownerID {
		// Owners must still be members, unless they are global admins.
		return a.RequireMember(user, projectID)
	}
	return a.RequireManager(user, projectID)
}

// ProjectIDForTask resolves a task to its owning project.
func (a *Authorizer) ProjectIDForTask(taskID uint) (uint, error) {
	var task models.Task
	if err := a.DB.Select("id", "project_id").First(&task, taskID).Error; err != nil {
		return 0, err
	}
	return task.ProjectID, nil
}

// ProjectIDForMilestone resolves a milestone to its owning project.
func (a *Authorizer) ProjectIDForMilestone(milestoneID uint) (uint, error) {
	var milestone models.Milestone
	if err := a.DB.Select("id", "project_id").First(&milestone, milestoneID).Error; err != nil {
		return 0, err
	}
	return milestone.ProjectID, nil
}

// ProjectIDForComment resolves a comment to its owning project, walking
// through the task or milestone when the comment is not attached to a
// project directly.
func (a *Authorizer) ProjectIDForComment(comment *models.Comment) (uint, error) {
	switch {
	case comment.ProjectID != nil:
		return *comment.ProjectID, nil
	case comment.TaskID != nil:
		return a.ProjectIDForTask(*comment.TaskID)
	case comment.MilestoneID != nil:
		return a.ProjectIDForMilestone(*comment.MilestoneID)
	}
	return 0, gorm.ErrRecordNotFound
}

// IsAuthzError reports whether err is one of the authorization sentinels,
// so controllers can map it to a business-rule response instead of a 500.
func IsAuthzError(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrInsufficientRole)
}
