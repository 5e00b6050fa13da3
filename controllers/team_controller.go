package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/services"
	"taskory/utils"
)

type TeamController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewTeamController(db *gorm.DB, logger *log.Logger) *TeamController {
	return &TeamController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

// GetMembers lists a project's members with their users
func (tc *TeamController) GetMembers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	if err := tc.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var members []models.ProjectMember
	if err := tc.DB.Preload("User").Where("project_id = ?", projectID).
		Order("joined_at ASC").Find(&members).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch members", err)
	}

	return c.JSON(utils.SuccessResponse(members))
}

// AddMember adds a user to the project with a role. Manager only.
func (tc *TeamController) AddMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	if err := tc.Authz.RequireManager(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var input struct {
		UserID uint   `json:"user_id" validate:"required"`
		Role   string `json:"role" validate:"omitempty,oneof=viewer member developer project_manager admin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Role == "" {
		input.Role = models.RoleMember
	}

	var target models.User
	if err := tc.DB.First(&target, input.UserID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user", err)
	}

	if _, err := tc.Authz.Membership(input.UserID, projectID); err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "User is already a project member", nil)
	}

	member := models.ProjectMember{
		ProjectID: projectID,
		UserID:    input.UserID,
		Role:      input.Role,
		JoinedAt:  time.Now(),
	}
	if err := tc.DB.Create(&member).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add member", err)
	}

	services.Notify(tc.DB, input.UserID, models.NotificationTypeProject,
		"Added to project", user.FullName()+" added you to a project",
		"project", &member.ProjectID)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(member))
}

// UpdateMemberRole changes a member's role. A downgrade that would leave the
// project without a project manager is refused.
func (tc *TeamController) UpdateMemberRole(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))
	memberUserID := utils.ParseUint(c.Params("userId"))

	if err := tc.Authz.RequireManager(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var input struct {
		Role string `json:"role" validate:"required,oneof=viewer member developer project_manager admin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	member, err := tc.Authz.Membership(memberUserID, projectID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Member not found", nil)
	}

	// Downgrading the last project manager is refused
	if member.Role == models.RoleProjectManager && input.Role != models.RoleProjectManager {
		count, err := tc.managerCount(projectID)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count project managers", err)
		}
		if count <= 1 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot remove the last project manager", nil)
		}
	}

	if err := tc.DB.Model(member).Update("role", input.Role).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update role", err)
	}

	return c.JSON(utils.SuccessResponse(member))
}

// RemoveMember removes a member from the project. Refused while the member
// is the last project manager or still holds open assigned tasks.
func (tc *TeamController) RemoveMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))
	memberUserID := utils.ParseUint(c.Params("userId"))

	if err := tc.Authz.RequireManager(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	member, err := tc.Authz.Membership(memberUserID, projectID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Member not found", nil)
	}

	if member.Role == models.RoleProjectManager {
		count, err := tc.managerCount(projectID)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count project managers", err)
		}
		if count <= 1 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot remove the last project manager", nil)
		}
	}

	// Open assigned tasks force a reassignment before removal
	var openTasks int64
	if err := tc.DB.Model(&models.Task{}).
		Where("project_id = ? AND assignee_id = ? AND status NOT IN ?", projectID, memberUserID,
			[]string{models.TaskStatusCompleted, models.TaskStatusCancelled}).
		Count(&openTasks).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check assigned tasks", err)
	}
	if openTasks > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"Member has incomplete assigned tasks; reassign them first", nil)
	}

	if err := tc.DB.Delete(member).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove member", err)
	}

	return c.JSON(utils.MessageResponse("Member removed", nil))
}

func (tc *TeamController) managerCount(projectID uint) (int64, error) {
	var count int64
	err := tc.DB.Model(&models.ProjectMember{}).
		Where("project_id = ? AND role = ?", projectID, models.RoleProjectManager).
		Count(&count).Error
	return count, err
}

// GetUsers lists all active users for member pickers. Admin only sees
// inactive accounts too.
func (tc *TeamController) GetUsers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, limit, offset := utils.ParsePagination(c)

	query := tc.DB.Model(&models.User{})
	if !user.IsAdmin {
		query = query.Where("is_active = true")
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(username) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count users", err)
	}

	var users []models.User
	if err := query.Order("username ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch users", err)
	}

	return c.JSON(utils.PaginatedResponse(users, page, limit, total))
}

// DeactivateUser soft-disables an account. Admin only; accounts that still
// own projects or hold open tasks are blocked from hard deletion, so this is
// the supported way to retire a user.
func (tc *TeamController) DeactivateUser(c *fiber.Ctx) error {
	targetID := utils.ParseUint(c.Params("id"))

	var target models.User
	if err := tc.DB.First(&target, targetID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user", err)
	}

	if err := tc.DB.Model(&target).Update("is_active", false).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to deactivate user", err)
	}

	return c.JSON(utils.MessageResponse("User deactivated", nil))
}
