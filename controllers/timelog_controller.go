package controller

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/services"
	"taskory/utils"
)

type TimeLogController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewTimeLogController(db *gorm.DB, logger *log.Logger) *TimeLogController {
	return &TimeLogController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

// validateTimeLogInput enforces the write-time rules: positive hours and a
// log date not in the future.
func validateTimeLogInput(hours float64, logDate time.Time) error {
	if hours <= 0 {
		return fmt.Errorf("hours_spent must be greater than zero")
	}
	today := time.Now().Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
	if logDate.After(today) {
		return fmt.Errorf("log_date cannot be in the future")
	}
	return nil
}

// CreateTimeLog records hours against a task and/or project
func (tlc *TimeLogController) CreateTimeLog(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		ProjectID   uint      `json:"project_id"`
		TaskID      *uint     `json:"task_id"`
		HoursSpent  float64   `json:"hours_spent" validate:"required"`
		LogDate     time.Time `json:"log_date" validate:"required"`
		Description string    `json:"description"`
		Billable    bool      `json:"billable"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := validateTimeLogInput(input.HoursSpent, input.LogDate); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	// Resolve the project through the task when only a task is given
	projectID := input.ProjectID
	if input.TaskID != nil {
		var task models.Task
		if err := tlc.DB.First(&task, *input.TaskID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Task not found", nil)
		}
		if projectID != 0 && projectID != task.ProjectID {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Task does not belong to the given project", nil)
		}
		projectID = task.ProjectID
	}
	if projectID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "A project or task reference is required", nil)
	}

	if err := tlc.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	entry := models.TimeLog{
		UserID:      user.ID,
		ProjectID:   projectID,
		TaskID:      input.TaskID,
		HoursSpent:  input.HoursSpent,
		LogDate:     input.LogDate,
		Description: input.Description,
		Billable:    input.Billable,
	}

	if err := tlc.DB.Create(&entry).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create time log", err)
	}

	// Keep the task's actual hours in step with its logs
	if input.TaskID != nil {
		tlc.DB.Model(&models.Task{}).Where("id = ?", *input.TaskID).
			Update("actual_hours", tlc.DB.Model(&models.TimeLog{}).
				Where("task_id = ?", *input.TaskID).
				Select("COALESCE(SUM(hours_spent), 0)"))
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(entry))
}

// timeLogFilters applies the shared conjunctive filter contract: optional
// user/project/task/date-range filters combine with AND.
func (tlc *TimeLogController) timeLogFilters(c *fiber.Ctx, query *gorm.DB) (*gorm.DB, error) {
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("time_logs.user_id = ?", utils.ParseUint(userID))
	}
	if projectID := c.Query("project_id"); projectID != "" {
		query = query.Where("time_logs.project_id = ?", utils.ParseUint(projectID))
	}
	if taskID := c.Query("task_id"); taskID != "" {
		query = query.Where("time_logs.task_id = ?", utils.ParseUint(taskID))
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, fmt.Errorf("invalid from date, expected YYYY-MM-DD")
		}
		query = query.Where("time_logs.log_date >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, fmt.Errorf("invalid to date, expected YYYY-MM-DD")
		}
		query = query.Where("time_logs.log_date <= ?", t.Add(24*time.Hour-time.Nanosecond))
	}
	if c.Query("billable") == "true" {
		query = query.Where("time_logs.billable = true")
	}
	return query, nil
}

// visibleTimeLogs restricts the query to projects the caller belongs to
func (tlc *TimeLogController) visibleTimeLogs(user *models.User) *gorm.DB {
	query := tlc.DB.Model(&models.TimeLog{})
	if !user.IsAdmin {
		query = query.Joins("JOIN project_members ON project_members.project_id = time_logs.project_id").
			Where("project_members.user_id = ? AND project_members.deleted_at IS NULL", user.ID)
	}
	return query
}

// GetTimeLogs lists time logs with the shared filters, paginated
func (tlc *TimeLogController) GetTimeLogs(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query, err := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	page, limit, offset := utils.ParsePagination(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count time logs", err)
	}

	var logs []models.TimeLog
	if err := query.Preload("User").Preload("Task").
		Order("time_logs.log_date DESC, time_logs.created_at DESC").
		Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch time logs", err)
	}

	return c.JSON(utils.PaginatedResponse(logs, page, limit, total))
}

// UpdateTimeLog edits an entry. Owner or manager only; re-validates rules.
func (tlc *TimeLogController) UpdateTimeLog(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	logID := utils.ParseUint(c.Params("id"))

	var entry models.TimeLog
	if err := tlc.DB.First(&entry, logID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Time log not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch time log", err)
	}

	if err := tlc.Authz.RequireManagerOrOwner(user, entry.ProjectID, entry.UserID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var input struct {
		HoursSpent  *float64   `json:"hours_spent"`
		LogDate     *time.Time `json:"log_date"`
		Description *string    `json:"description"`
		Billable    *bool      `json:"billable"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if input.HoursSpent != nil {
		entry.HoursSpent = *input.HoursSpent
	}
	if input.LogDate != nil {
		entry.LogDate = *input.LogDate
	}
	if input.Description != nil {
		entry.Description = *input.Description
	}
	if input.Billable != nil {
		entry.Billable = *input.Billable
	}

	if err := validateTimeLogInput(entry.HoursSpent, entry.LogDate); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := tlc.DB.Save(&entry).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update time log", err)
	}

	return c.JSON(utils.SuccessResponse(entry))
}

// DeleteTimeLog removes an entry. Owner or manager only.
func (tlc *TimeLogController) DeleteTimeLog(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	logID := utils.ParseUint(c.Params("id"))

	var entry models.TimeLog
	if err := tlc.DB.First(&entry, logID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Time log not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch time log", err)
	}

	if err := tlc.Authz.RequireManagerOrOwner(user, entry.ProjectID, entry.UserID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if err := tlc.DB.Delete(&entry).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete time log", err)
	}

	return c.JSON(utils.MessageResponse("Time log deleted", nil))
}

// GetTimeSummary returns total and billable hours under the shared filters
func (tlc *TimeLogController) GetTimeSummary(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query, err := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var total float64
	if err := query.Select("COALESCE(SUM(time_logs.hours_spent), 0)").Scan(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to aggregate hours", err)
	}

	billableQuery, _ := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	var billable float64
	if err := billableQuery.Where("time_logs.billable = true").
		Select("COALESCE(SUM(time_logs.hours_spent), 0)").Scan(&billable).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to aggregate billable hours", err)
	}

	var entries int64
	countQuery, _ := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	countQuery.Count(&entries)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"total_hours":    total,
		"billable_hours": billable,
		"entries":        entries,
	}))
}

// GetTimeByUser aggregates hours per user under the shared filters
func (tlc *TimeLogController) GetTimeByUser(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query, err := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	type userHours struct {
		UserID     uint    `json:"user_id"`
		Username   string  `json:"username"`
		TotalHours float64 `json:"total_hours"`
	}
	var rows []userHours
	if err := query.
		Joins("JOIN users ON users.id = time_logs.user_id").
		Select("time_logs.user_id, users.username, SUM(time_logs.hours_spent) as total_hours").
		Group("time_logs.user_id, users.username").
		Order("total_hours DESC").
		Scan(&rows).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to aggregate hours by user", err)
	}

	return c.JSON(utils.SuccessResponse(rows))
}

// GetTimeByProject aggregates hours per project under the shared filters
func (tlc *TimeLogController) GetTimeByProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query, err := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	type projectHours struct {
		ProjectID  uint    `json:"project_id"`
		Name       string  `json:"name"`
		TotalHours float64 `json:"total_hours"`
	}
	var rows []projectHours
	if err := query.
		Joins("JOIN projects ON projects.id = time_logs.project_id").
		Select("time_logs.project_id, projects.name, SUM(time_logs.hours_spent) as total_hours").
		Group("time_logs.project_id, projects.name").
		Order("total_hours DESC").
		Scan(&rows).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to aggregate hours by project", err)
	}

	return c.JSON(utils.SuccessResponse(rows))
}

// GetTimeByCategory aggregates hours per task type under the shared
// filters. Entries logged directly against a project fall under
// "uncategorized".
func (tlc *TimeLogController) GetTimeByCategory(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query, err := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	type categoryHours struct {
		Category   string  `json:"category"`
		TotalHours float64 `json:"total_hours"`
	}
	var rows []categoryHours
	if err := query.
		Joins("LEFT JOIN tasks ON tasks.id = time_logs.task_id").
		Select("COALESCE(tasks.type, 'uncategorized') as category, SUM(time_logs.hours_spent) as total_hours").
		Group("COALESCE(tasks.type, 'uncategorized')").
		Order("total_hours DESC").
		Scan(&rows).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to aggregate hours by category", err)
	}

	return c.JSON(utils.SuccessResponse(rows))
}

// ExportTimeLogsCSV writes the filtered logs as CSV. Free-text fields are
// quoted and embedded quotes escaped by the csv writer.
func (tlc *TimeLogController) ExportTimeLogsCSV(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query, err := tlc.timeLogFilters(c, tlc.visibleTimeLogs(user))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var logs []models.TimeLog
	if err := query.Preload("User").Preload("Task").
		Order("time_logs.log_date ASC").Find(&logs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch time logs", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"date", "user", "project_id", "task", "hours", "billable", "description"})
	for _, entry := range logs {
		taskTitle := ""
		if entry.Task != nil {
			taskTitle = entry.Task.Title
		}
		_ = w.Write([]string{
			entry.LogDate.Format("2006-01-02"),
			entry.User.Username,
			fmt.Sprintf("%d", entry.ProjectID),
			taskTitle,
			fmt.Sprintf("%.2f", entry.HoursSpent),
			fmt.Sprintf("%t", entry.Billable),
			entry.Description,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to write CSV", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="time_logs.csv"`)
	return c.Send(buf.Bytes())
}
