package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/services"
	"taskory/utils"
)

// taskOrder is the fixed total order for stable task pagination:
// priority rank first, then due date, then newest created.
const taskOrder = "CASE tasks.priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, tasks.due_date ASC, tasks.created_at DESC"

type TaskController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewTaskController(db *gorm.DB, logger *log.Logger) *TaskController {
	return &TaskController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

// CreateTask creates a task after validating the project, milestone, parent
// and assignee references. The assignee must be a project member.
func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		ProjectID      uint       `json:"project_id" validate:"required"`
		MilestoneID    *uint      `json:"milestone_id"`
		ParentTaskID   *uint      `json:"parent_task_id"`
		AssigneeID     *uint      `json:"assignee_id"`
		Title          string     `json:"title" validate:"required,max=200"`
		Description    string     `json:"description"`
		Status         string     `json:"status" validate:"omitempty,oneof=todo in_progress review completed cancelled"`
		Priority       string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
		Type           string     `json:"type" validate:"omitempty,oneof=feature bug improvement chore"`
		DueDate        *time.Time `json:"due_date"`
		EstimatedHours float64    `json:"estimated_hours" validate:"omitempty,gte=0"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var project models.Project
	if err := tc.DB.First(&project, input.ProjectID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch project", err)
	}

	if err := tc.Authz.RequireMember(user, project.ID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if input.MilestoneID != nil {
		var milestone models.Milestone
		if err := tc.DB.First(&milestone, *input.MilestoneID).Error; err != nil || milestone.ProjectID != project.ID {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Milestone does not belong to this project", nil)
		}
	}

	if input.ParentTaskID != nil {
		var parent models.Task
		if err := tc.DB.First(&parent, *input.ParentTaskID).Error; err != nil || parent.ProjectID != project.ID {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Parent task does not belong to this project", nil)
		}
	}

	if input.AssigneeID != nil {
		if _, err := tc.Authz.Membership(*input.AssigneeID, project.ID); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Assignee must be a project member", nil)
		}
	}

	task := models.Task{
		ProjectID:      project.ID,
		MilestoneID:    input.MilestoneID,
		ParentTaskID:   input.ParentTaskID,
		AssigneeID:     input.AssigneeID,
		CreatedBy:      user.ID,
		Title:          input.Title,
		Description:    input.Description,
		Status:         models.TaskStatusTodo,
		Priority:       models.PriorityMedium,
		Type:           models.TaskTypeFeature,
		DueDate:        input.DueDate,
		EstimatedHours: input.EstimatedHours,
	}
	if input.Status != "" {
		task.Status = input.Status
	}
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	if input.Type != "" {
		task.Type = input.Type
	}

	if err := tc.DB.Create(&task).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create task", err)
	}

	if task.AssigneeID != nil && *task.AssigneeID != user.ID {
		services.Notify(tc.DB, *task.AssigneeID, models.NotificationTypeTask,
			"Task assigned to you", fmt.Sprintf("%s assigned you %q", user.FullName(), task.Title),
			"task", &task.ID)
	}
	services.RecordActivity(tc.DB, user.ID, "created", "task", task.ID, task.Title)
	BroadcastProjectEvent(project.ID, "task_created", task.ID)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(task))
}

// GetTasks lists tasks the caller can see, filtered and paginated
func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, limit, offset := utils.ParsePagination(c)

	query := tc.DB.Model(&models.Task{})
	if !user.IsAdmin {
		query = query.Joins("JOIN project_members ON project_members.project_id = tasks.project_id").
			Where("project_members.user_id = ? AND project_members.deleted_at IS NULL", user.ID)
	}

	if projectID := c.Query("project_id"); projectID != "" {
		query = query.Where("tasks.project_id = ?", utils.ParseUint(projectID))
	}
	if milestoneID := c.Query("milestone_id"); milestoneID != "" {
		query = query.Where("tasks.milestone_id = ?", utils.ParseUint(milestoneID))
	}
	if assigneeID := c.Query("assignee_id"); assigneeID != "" {
		query = query.Where("tasks.assignee_id = ?", utils.ParseUint(assigneeID))
	}
	if status := c.Query("status"); status != "" {
		if !models.ValidTaskStatus(status) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status filter", nil)
		}
		query = query.Where("tasks.status = ?", status)
	}
	if priority := c.Query("priority"); priority != "" {
		if !models.ValidPriority(priority) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid priority filter", nil)
		}
		query = query.Where("tasks.priority = ?", priority)
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(tasks.title) LIKE LOWER(?) OR LOWER(tasks.description) LIKE LOWER(?)", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count tasks", err)
	}

	var tasks []models.Task
	if err := query.Preload("Assignee").Order(taskOrder).Offset(offset).Limit(limit).Find(&tasks).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch tasks", err)
	}

	return c.JSON(utils.PaginatedResponse(tasks, page, limit, total))
}

// GetTask returns one task with its subtasks, comments and time logs
func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("id"))

	var task models.Task
	if err := tc.DB.Preload("Assignee").Preload("Milestone").Preload("Subtasks").
		Preload("Comments.User").Preload("TimeLogs").
		First(&task, taskID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Task not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch task", err)
	}

	if err := tc.Authz.RequireMember(user, task.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	return c.JSON(utils.SuccessResponse(task))
}

// UpdateTask applies a partial update to a task
func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("id"))

	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Task not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch task", err)
	}

	if err := tc.Authz.RequireMember(user, task.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var input struct {
		MilestoneID    *uint      `json:"milestone_id"`
		AssigneeID     *uint      `json:"assignee_id"`
		Title          *string    `json:"title" validate:"omitempty,max=200"`
		Description    *string    `json:"description"`
		Status         *string    `json:"status" validate:"omitempty,oneof=todo in_progress review completed cancelled"`
		Priority       *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
		Type           *string    `json:"type" validate:"omitempty,oneof=feature bug improvement chore"`
		DueDate        *time.Time `json:"due_date"`
		EstimatedHours *float64   `json:"estimated_hours" validate:"omitempty,gte=0"`
		ActualHours    *float64   `json:"actual_hours" validate:"omitempty,gte=0"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.MilestoneID != nil {
		var milestone models.Milestone
		if err := tc.DB.First(&milestone, *input.MilestoneID).Error; err != nil || milestone.ProjectID != task.ProjectID {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Milestone does not belong to this project", nil)
		}
		task.MilestoneID = input.MilestoneID
	}
	if input.AssigneeID != nil {
		if _, err := tc.Authz.Membership(*input.AssigneeID, task.ProjectID); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Assignee must be a project member", nil)
		}
		task.AssigneeID = input.AssigneeID
	}
	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.Type != nil {
		task.Type = *input.Type
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.EstimatedHours != nil {
		task.EstimatedHours = *input.EstimatedHours
	}
	if input.ActualHours != nil {
		task.ActualHours = *input.ActualHours
	}

	if err := tc.DB.Save(&task).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update task", err)
	}

	services.RecordActivity(tc.DB, user.ID, "updated", "task", task.ID, task.Title)
	BroadcastProjectEvent(task.ProjectID, "task_updated", task.ID)

	return c.JSON(utils.SuccessResponse(task))
}

// UpdateTaskStatus patches just the status with enum validation
func (tc *TaskController) UpdateTaskStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("id"))

	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if !models.ValidTaskStatus(input.Status) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task status", nil)
	}

	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Task not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch task", err)
	}

	if err := tc.Authz.RequireMember(user, task.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	updates := map[string]interface{}{"status": input.Status}
	if input.Status == models.TaskStatusCompleted {
		updates["progress_percentage"] = 100
	}
	if err := tc.DB.Model(&task).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update status", err)
	}

	services.RecordActivity(tc.DB, user.ID, "status_changed", "task", task.ID, input.Status)
	BroadcastProjectEvent(task.ProjectID, "task_status_changed", task.ID)

	return c.JSON(utils.SuccessResponse(task))
}

// UpdateTaskProgress patches just the progress percentage (0-100)
func (tc *TaskController) UpdateTaskProgress(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("id"))

	var input struct {
		ProgressPercentage *int `json:"progress_percentage" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.ProgressPercentage == nil || *input.ProgressPercentage < 0 || *input.ProgressPercentage > 100 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Progress must be between 0 and 100", nil)
	}

	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Task not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch task", err)
	}

	if err := tc.Authz.RequireMember(user, task.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if err := tc.DB.Model(&task).Update("progress_percentage", *input.ProgressPercentage).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update progress", err)
	}

	return c.JSON(utils.SuccessResponse(task))
}

// AssignTask sets or clears the assignee; the assignee must be a member
func (tc *TaskController) AssignTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("id"))

	var input struct {
		AssigneeID *uint `json:"assignee_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Task not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch task", err)
	}

	if err := tc.Authz.RequireMember(user, task.ProjectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if input.AssigneeID != nil {
		if _, err := tc.Authz.Membership(*input.AssigneeID, task.ProjectID); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Assignee must be a project member", nil)
		}
	}

	if err := tc.DB.Model(&task).Update("assignee_id", input.AssigneeID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to assign task", err)
	}

	if input.AssigneeID != nil && *input.AssigneeID != user.ID {
		services.Notify(tc.DB, *input.AssigneeID, models.NotificationTypeTask,
			"Task assigned to you", fmt.Sprintf("%s assigned you %q", user.FullName(), task.Title),
			"task", &task.ID)
	}
	services.RecordActivity(tc.DB, user.ID, "assigned", "task", task.ID, task.Title)

	return c.JSON(utils.SuccessResponse(task))
}

// DeleteTask removes a task. Blocked while subtasks exist.
func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("id"))

	var task models.Task
	if err := tc.DB.First(&task, taskID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Task not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch task", err)
	}

	if err := tc.Authz.RequireManagerOrOwner(user, task.ProjectID, task.CreatedBy); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var subtaskCount int64
	if err := tc.DB.Model(&models.Task{}).Where("parent_task_id = ?", task.ID).Count(&subtaskCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check subtasks", err)
	}
	if subtaskCount > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot delete a task that has subtasks", nil)
	}

	if err := tc.DB.Delete(&task).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete task", err)
	}

	services.RecordActivity(tc.DB, user.ID, "deleted", "task", task.ID, task.Title)
	BroadcastProjectEvent(task.ProjectID, "task_deleted", task.ID)

	return c.JSON(utils.MessageResponse("Task deleted", nil))
}
