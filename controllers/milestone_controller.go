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

type MilestoneController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewMilestoneController(db *gorm.DB, logger *log.Logger) *MilestoneController {
	return &MilestoneController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

// CreateMilestone creates a milestone inside a project
func (mc *MilestoneController) CreateMilestone(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		ProjectID   uint       `json:"project_id" validate:"required"`
		Name        string     `json:"name" validate:"required,max=200"`
		Description string     `json:"description"`
		Status      string     `json:"status" validate:"omitempty,oneof=planned in_progress completed cancelled"`
		DueDate     *time.Time `json:"due_date"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var project models.Project
	if err := mc.DB.First(&project, input.ProjectID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch project", err)
	}

	if err := mc.Authz.RequireMember(user, project.ID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	milestone := models.Milestone{
		ProjectID:   project.ID,
		Name:        input.Name,
		Description: input.Description,
		Status:      models.MilestoneStatusPlanned,
		DueDate:     input.DueDate,
	}
	if input.Status != "" {
		milestone.Status = input.Status
	}

	if err := mc.DB.Create(&milestone).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create milestone", err)
	}

	services.RecordActivity(mc.DB, user.ID, "created", "milestone", milestone.ID, milestone.Name)
	BroadcastProjectEvent(project.ID, "milestone_created", milestone.ID)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(milestone))
}

// GetMilestones lists milestones for a project
func (mc *MilestoneController) GetMilestones(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	projectID := utils.ParseUint(c.Query("project_id"))
	if projectID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "project_id query parameter is required", nil)
	}

	if err := mc.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	page, limit, offset := utils.ParsePagination(c)

	query := mc.DB.Model(&models.Milestone{}).Where("project_id = ?", projectID)
	if status := c.Query("status"); status != "" {
		if !models.ValidMilestoneStatus(status) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status filter", nil)
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count milestones", err)
	}

	var milestones []models.Milestone
	if err := query.Order("due_date ASC, created_at DESC").Offset(offset).Limit(limit).Find(&milestones).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch milestones", err)
	}

	return c.JSON(utils.PaginatedResponse(milestones, page, limit, total))
}

// GetMilestone returns one milestone with completion recomputed from its
// current task completion ratio
func (mc *MilestoneController) GetMilestone(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	milestoneID := utils.ParseUint(c.Params("id"))

	var milestone models.Milestone
	if err := mc.DB.Preload("Tasks").First(&milestone, milestoneID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Milestone not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch milestone", err)
	}

	if err := mc.Authz.RequireMember(user, milestone.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if _, err := services.SyncMilestoneProgress(mc.DB, &milestone); err != nil {
		mc.Logger.Printf("completion sync failed for milestone %d: %v", milestone.ID, err)
	}

	return c.JSON(utils.SuccessResponse(milestone))
}

// UpdateMilestone applies a partial update
func (mc *MilestoneController) UpdateMilestone(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	milestoneID := utils.ParseUint(c.Params("id"))

	var milestone models.Milestone
	if err := mc.DB.First(&milestone, milestoneID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Milestone not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch milestone", err)
	}

	if err := mc.Authz.RequireMember(user, milestone.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var input struct {
		Name                 *string    `json:"name" validate:"omitempty,max=200"`
		Description          *string    `json:"description"`
		Status               *string    `json:"status" validate:"omitempty,oneof=planned in_progress completed cancelled"`
		DueDate              *time.Time `json:"due_date"`
		CompletionPercentage *int       `json:"completion_percentage"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.CompletionPercentage != nil && (*input.CompletionPercentage < 0 || *input.CompletionPercentage > 100) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Completion must be between 0 and 100", nil)
	}

	if input.Name != nil {
		milestone.Name = *input.Name
	}
	if input.Description != nil {
		milestone.Description = *input.Description
	}
	if input.Status != nil {
		milestone.Status = *input.Status
	}
	if input.DueDate != nil {
		milestone.DueDate = input.DueDate
	}
	if input.CompletionPercentage != nil {
		milestone.CompletionPercentage = *input.CompletionPercentage
	}

	if err := mc.DB.Save(&milestone).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update milestone", err)
	}

	services.RecordActivity(mc.DB, user.ID, "updated", "milestone", milestone.ID, milestone.Name)

	return c.JSON(utils.SuccessResponse(milestone))
}

// DeleteMilestone removes a milestone. Blocked while tasks reference it.
func (mc *MilestoneController) DeleteMilestone(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	milestoneID := utils.ParseUint(c.Params("id"))

	var milestone models.Milestone
	if err := mc.DB.First(&milestone, milestoneID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Milestone not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch milestone", err)
	}

	if err := mc.Authz.RequireManager(user, milestone.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var taskCount int64
	if err := mc.DB.Model(&models.Task{}).Where("milestone_id = ?", milestone.ID).Count(&taskCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check tasks", err)
	}
	if taskCount > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot delete a milestone that has tasks", nil)
	}

	if err := mc.DB.Delete(&milestone).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete milestone", err)
	}

	services.RecordActivity(mc.DB, user.ID, "deleted", "milestone", milestone.ID, milestone.Name)

	return c.JSON(utils.MessageResponse("Milestone deleted", nil))
}

// GetMilestoneStats returns task aggregates for one milestone
func (mc *MilestoneController) GetMilestoneStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	milestoneID := utils.ParseUint(c.Params("id"))

	var milestone models.Milestone
	if err := mc.DB.First(&milestone, milestoneID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Milestone not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch milestone", err)
	}

	if err := mc.Authz.RequireMember(user, milestone.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var total, completed, overdue int64
	mc.DB.Model(&models.Task{}).Where("milestone_id = ?", milestone.ID).Count(&total)
	mc.DB.Model(&models.Task{}).Where("milestone_id = ? AND status = ?", milestone.ID, models.TaskStatusCompleted).Count(&completed)
	mc.DB.Model(&models.Task{}).
		Where("milestone_id = ? AND due_date < ? AND status NOT IN ?", milestone.ID, time.Now(),
			[]string{models.TaskStatusCompleted, models.TaskStatusCancelled}).
		Count(&overdue)

	completion := services.ComputeProgress(0, 0, int(completed), int(total))

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"milestone_id":          milestone.ID,
		"total_tasks":           total,
		"completed_tasks":       completed,
		"overdue_tasks":         overdue,
		"completion_percentage": completion,
	}))
}
