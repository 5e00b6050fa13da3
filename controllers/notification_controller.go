package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/services"
	"taskory/utils"
)

type NotificationController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewNotificationController(db *gorm.DB, logger *log.Logger) *NotificationController {
	return &NotificationController{
		DB:     db,
		Logger: logger,
	}
}

// GetNotifications lists the caller's notifications, newest first
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, limit, offset := utils.ParsePagination(c)

	query := nc.DB.Model(&models.Notification{}).Where("user_id = ?", user.ID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = false")
	}
	if t := c.Query("type"); t != "" {
		if !models.ValidNotificationType(t) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid notification type", nil)
		}
		query = query.Where("type = ?", t)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count notifications", err)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&notifications).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch notifications", err)
	}

	return c.JSON(utils.PaginatedResponse(notifications, page, limit, total))
}

// GetUnreadCount returns the caller's unread notification count
func (nc *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var count int64
	if err := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = false", user.ID).
		Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count notifications", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"unread": count}))
}

// MarkRead marks one of the caller's notifications as read
func (nc *NotificationController) MarkRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := utils.ParseUint(c.Params("id"))

	var notification models.Notification
	if err := nc.DB.Where("id = ? AND user_id = ?", notificationID, user.ID).
		First(&notification).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch notification", err)
	}

	if err := nc.DB.Model(&notification).Update("is_read", true).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark as read", err)
	}

	return c.JSON(utils.SuccessResponse(notification))
}

// MarkAllRead marks all of the caller's notifications as read
func (nc *NotificationController) MarkAllRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if err := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = false", user.ID).
		Update("is_read", true).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark notifications as read", err)
	}

	return c.JSON(utils.MessageResponse("All notifications marked as read", nil))
}

// DeleteNotification removes one of the caller's notifications
func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := utils.ParseUint(c.Params("id"))

	result := nc.DB.Where("id = ? AND user_id = ?", notificationID, user.ID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", nil)
	}

	return c.JSON(utils.MessageResponse("Notification deleted", nil))
}

// SendNotification fans one payload out to N users, looped per recipient.
// Admin only. Failures are collected per item rather than aborting the batch.
func (nc *NotificationController) SendNotification(c *fiber.Ctx) error {
	var input struct {
		UserIDs []uint `json:"user_ids" validate:"required,min=1"`
		Type    string `json:"type" validate:"omitempty,oneof=task project milestone comment system"`
		Title   string `json:"title" validate:"required,max=200"`
		Message string `json:"message"`
		Payload string `json:"payload"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Type == "" {
		input.Type = models.NotificationTypeSystem
	}

	type itemResult struct {
		UserID  uint   `json:"user_id"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	results := make([]itemResult, 0, len(input.UserIDs))

	for _, userID := range input.UserIDs {
		var target models.User
		if err := nc.DB.First(&target, userID).Error; err != nil {
			results = append(results, itemResult{UserID: userID, Error: "user not found"})
			continue
		}

		notification := models.Notification{
			UserID:  userID,
			Type:    input.Type,
			Title:   input.Title,
			Message: input.Message,
			Payload: input.Payload,
		}
		if err := nc.DB.Create(&notification).Error; err != nil {
			results = append(results, itemResult{UserID: userID, Error: "failed to create notification"})
			continue
		}
		results = append(results, itemResult{UserID: userID, Success: true})
	}

	return c.JSON(utils.SuccessResponse(results))
}

// CleanupNotifications deletes read notifications older than 30 days.
// Admin only; the retention worker runs the same sweep on a schedule.
func (nc *NotificationController) CleanupNotifications(c *fiber.Ctx) error {
	deleted, err := services.SweepNotifications(nc.DB)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clean up notifications", err)
	}

	return c.JSON(utils.MessageResponse("Cleanup complete", fiber.Map{"deleted": deleted}))
}
