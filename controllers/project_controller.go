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

type ProjectController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewProjectController(db *gorm.DB, logger *log.Logger) *ProjectController {
	return &ProjectController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

// CreateProject creates a project and adds the creator as project_manager
func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string     `json:"name" validate:"required,max=200"`
		Description string     `json:"description"`
		Status      string     `json:"status" validate:"omitempty,oneof=active completed on_hold cancelled"`
		Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
		StartDate   *time.Time `json:"start_date"`
		EndDate     *time.Time `json:"end_date"`
		Budget      *float64   `json:"budget"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "End date cannot be before start date", nil)
	}

	project := models.Project{
		Name:        input.Name,
		Description: input.Description,
		Status:      models.ProjectStatusActive,
		Priority:    models.PriorityMedium,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Budget:      input.Budget,
		CreatedBy:   user.ID,
	}
	if input.Status != "" {
		project.Status = input.Status
	}
	if input.Priority != "" {
		project.Priority = input.Priority
	}

	if err := pc.DB.Create(&project).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create project", err)
	}

	// Creator is automatically the project manager
	member := models.ProjectMember{
		ProjectID: project.ID,
		UserID:    user.ID,
		Role:      models.RoleProjectManager,
		JoinedAt:  time.Now(),
	}
	if err := pc.DB.Create(&member).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add creator as project manager", err)
	}

	services.RecordActivity(pc.DB, user.ID, "created", "project", project.ID, project.Name)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(project))
}

// GetProjects returns a paginated project list filtered by status, priority
// and a free-text search. Non-admins see only projects they are members of.
func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, limit, offset := utils.ParsePagination(c)
	status := c.Query("status")
	priority := c.Query("priority")
	search := c.Query("search")

	query := pc.DB.Model(&models.Project{})
	if !user.IsAdmin {
		query = query.Joins("JOIN project_members ON project_members.project_id = projects.id").
			Where("project_members.user_id = ? AND project_members.deleted_at IS NULL", user.ID)
	}

	if status != "" {
		if !models.ValidProjectStatus(status) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status filter", nil)
		}
		query = query.Where("projects.status = ?", status)
	}
	if priority != "" {
		if !models.ValidPriority(priority) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid priority filter", nil)
		}
		query = query.Where("projects.priority = ?", priority)
	}
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(projects.name) LIKE LOWER(?) OR LOWER(projects.description) LIKE LOWER(?)", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count projects", err)
	}

	var projects []models.Project
	if err := query.Order("projects.created_at DESC").Offset(offset).Limit(limit).Find(&projects).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch projects", err)
	}

	return c.JSON(utils.PaginatedResponse(projects, page, limit, total))
}

// GetProject returns a single project with members, milestones and tasks.
// The stored progress is recomputed from current task/time aggregates.
func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.Preload("Members.User").Preload("Milestones").Preload("Tasks").
		First(&project, projectID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch project", err)
	}

	if err := pc.Authz.RequireMember(user, project.ID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if _, err := services.SyncProjectProgress(pc.DB, &project); err != nil {
		pc.Logger.Printf("progress sync failed for project %d: %v", project.ID, err)
	}

	return c.JSON(utils.SuccessResponse(project))
}

// UpdateProject applies a partial update; unset fields keep prior values
func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch project", err)
	}

	if err := pc.Authz.RequireManager(user, project.ID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var input struct {
		Name        *string    `json:"name" validate:"omitempty,max=200"`
		Description *string    `json:"description"`
		Status      *string    `json:"status" validate:"omitempty,oneof=active completed on_hold cancelled"`
		Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
		StartDate   *time.Time `json:"start_date"`
		EndDate     *time.Time `json:"end_date"`
		Budget      *float64   `json:"budget"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.Name != nil {
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.Status != nil {
		project.Status = *input.Status
	}
	if input.Priority != nil {
		project.Priority = *input.Priority
	}
	if input.StartDate != nil {
		project.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		project.EndDate = input.EndDate
	}
	if input.Budget != nil {
		project.Budget = input.Budget
	}

	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "End date cannot be before start date", nil)
	}

	if err := pc.DB.Save(&project).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update project", err)
	}

	services.RecordActivity(pc.DB, user.ID, "updated", "project", project.ID, project.Name)

	return c.JSON(utils.SuccessResponse(project))
}

// DeleteProject removes the project and cascades to members, milestones,
// tasks and time logs. Manager only.
func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch project", err)
	}

	if err := pc.Authz.RequireManager(user, project.ID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	err := pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.TimeLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Milestone{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete project", err)
	}

	services.RecordActivity(pc.DB, user.ID, "deleted", "project", project.ID, project.Name)

	return c.JSON(utils.MessageResponse("Project deleted", nil))
}

// GetProjectStats returns task and time aggregates for one project
func (pc *ProjectController) GetProjectStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch project", err)
	}

	if err := pc.Authz.RequireMember(user, project.ID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var byStatus []statusCount
	if err := pc.DB.Model(&models.Task{}).
		Where("project_id = ?", project.ID).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to aggregate tasks", err)
	}

	var totalHours, billableHours float64
	pc.DB.Model(&models.TimeLog{}).Where("project_id = ?", project.ID).
		Select("COALESCE(SUM(hours_spent), 0)").Scan(&totalHours)
	pc.DB.Model(&models.TimeLog{}).Where("project_id = ? AND billable = true", project.ID).
		Select("COALESCE(SUM(hours_spent), 0)").Scan(&billableHours)

	var memberCount, milestoneCount int64
	pc.DB.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&memberCount)
	pc.DB.Model(&models.Milestone{}).Where("project_id = ?", project.ID).Count(&milestoneCount)

	progress, err := services.ProjectProgress(pc.DB, project.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute progress", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"project_id":          project.ID,
		"tasks_by_status":     byStatus,
		"total_hours":         totalHours,
		"billable_hours":      billableHours,
		"member_count":        memberCount,
		"milestone_count":     milestoneCount,
		"progress_percentage": progress,
	}))
}

// GetProjectActivity lists the latest activity log entries for a project's
// tasks and milestones alongside the project itself.
func (pc *ProjectController) GetProjectActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	if err := pc.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	page, limit, offset := utils.ParsePagination(c)

	taskIDs := pc.DB.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)
	milestoneIDs := pc.DB.Model(&models.Milestone{}).Select("id").Where("project_id = ?", projectID)

	query := pc.DB.Model(&models.ActivityLog{}).Where(
		"(entity_type = 'project' AND entity_id = ?) OR (entity_type = 'task' AND entity_id IN (?)) OR (entity_type = 'milestone' AND entity_id IN (?))",
		projectID, taskIDs, milestoneIDs,
	)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count activity", err)
	}

	var entries []models.ActivityLog
	if err := query.Preload("User").Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activity", err)
	}

	return c.JSON(utils.PaginatedResponse(entries, page, limit, total))
}
