package controller

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/config"
	"taskory/models"
	"taskory/services"
	"taskory/utils"
)

type AttachmentController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewAttachmentController(db *gorm.DB, logger *log.Logger) *AttachmentController {
	return &AttachmentController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

// resolveAttachmentProject walks an attachment's owner back to its project
func (ac *AttachmentController) resolveAttachmentProject(a *models.Attachment) (uint, error) {
	switch {
	case a.ProjectID != nil:
		return *a.ProjectID, nil
	case a.TaskID != nil:
		return ac.Authz.ProjectIDForTask(*a.TaskID)
	case a.MilestoneID != nil:
		return ac.Authz.ProjectIDForMilestone(*a.MilestoneID)
	case a.CommentID != nil:
		var comment models.Comment
		if err := ac.DB.First(&comment, *a.CommentID).Error; err != nil {
			return 0, err
		}
		return ac.Authz.ProjectIDForComment(&comment)
	}
	return 0, gorm.ErrRecordNotFound
}

// UploadAttachment stores a multipart file under the upload directory and
// records its metadata against one owning entity.
func (ac *AttachmentController) UploadAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "A file is required", err)
	}

	attachment := models.Attachment{
		UploadedBy:  user.ID,
		FileName:    file.Filename,
		FileSize:    file.Size,
		ContentType: file.Header.Get("Content-Type"),
	}

	targets := 0
	if v := c.FormValue("task_id"); v != "" {
		attachment.TaskID = utils.Pointer(utils.ParseUint(v))
		targets++
	}
	if v := c.FormValue("project_id"); v != "" {
		attachment.ProjectID = utils.Pointer(utils.ParseUint(v))
		targets++
	}
	if v := c.FormValue("milestone_id"); v != "" {
		attachment.MilestoneID = utils.Pointer(utils.ParseUint(v))
		targets++
	}
	if v := c.FormValue("comment_id"); v != "" {
		attachment.CommentID = utils.Pointer(utils.ParseUint(v))
		targets++
	}
	if targets != 1 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Attachment must target exactly one entity", nil)
	}

	projectID, err := ac.resolveAttachmentProject(&attachment)
	if err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment target not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve attachment target", err)
	}

	if err := ac.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	token, err := utils.GenerateToken(8)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate file name", err)
	}
	storedName := fmt.Sprintf("%s%s", token, filepath.Ext(file.Filename))

	if err := os.MkdirAll(config.AppConfig.UploadDir, 0o755); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to prepare upload directory", err)
	}
	dst := filepath.Join(config.AppConfig.UploadDir, storedName)
	if err := c.SaveFile(file, dst); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store file", err)
	}
	attachment.FilePath = "/uploads/" + storedName

	if err := ac.DB.Create(&attachment).Error; err != nil {
		// Don't leave an orphaned file behind
		_ = os.Remove(dst)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save attachment", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(attachment))
}

// GetAttachments lists attachments for one entity
func (ac *AttachmentController) GetAttachments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	probe := models.Attachment{}
	query := ac.DB.Model(&models.Attachment{})

	switch {
	case c.Query("task_id") != "":
		id := utils.ParseUint(c.Query("task_id"))
		probe.TaskID = &id
		query = query.Where("task_id = ?", id)
	case c.Query("project_id") != "":
		id := utils.ParseUint(c.Query("project_id"))
		probe.ProjectID = &id
		query = query.Where("project_id = ?", id)
	case c.Query("milestone_id") != "":
		id := utils.ParseUint(c.Query("milestone_id"))
		probe.MilestoneID = &id
		query = query.Where("milestone_id = ?", id)
	case c.Query("comment_id") != "":
		id := utils.ParseUint(c.Query("comment_id"))
		probe.CommentID = &id
		query = query.Where("comment_id = ?", id)
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "An entity filter is required", nil)
	}

	projectID, err := ac.resolveAttachmentProject(&probe)
	if err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment target not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve attachment target", err)
	}

	if err := ac.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var attachments []models.Attachment
	if err := query.Preload("Uploader").Order("created_at DESC").Find(&attachments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch attachments", err)
	}

	return c.JSON(utils.SuccessResponse(attachments))
}

// GetAttachment returns one attachment's metadata
func (ac *AttachmentController) GetAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attachmentID := utils.ParseUint(c.Params("id"))

	var attachment models.Attachment
	if err := ac.DB.Preload("Uploader").First(&attachment, attachmentID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch attachment", err)
	}

	projectID, err := ac.resolveAttachmentProject(&attachment)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve attachment target", err)
	}

	if err := ac.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	return c.JSON(utils.SuccessResponse(attachment))
}

// DeleteAttachment removes the metadata row and the stored file. Uploader
// or project manager only.
func (ac *AttachmentController) DeleteAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attachmentID := utils.ParseUint(c.Params("id"))

	var attachment models.Attachment
	if err := ac.DB.First(&attachment, attachmentID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch attachment", err)
	}

	projectID, err := ac.resolveAttachmentProject(&attachment)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve attachment target", err)
	}

	if err := ac.Authz.RequireManagerOrOwner(user, projectID, attachment.UploadedBy); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if err := ac.DB.Delete(&attachment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete attachment", err)
	}

	stored := filepath.Join(config.AppConfig.UploadDir, filepath.Base(attachment.FilePath))
	if err := os.Remove(stored); err != nil && !os.IsNotExist(err) {
		ac.Logger.Printf("failed to remove stored file %s: %v", stored, err)
	}

	return c.JSON(utils.MessageResponse("Attachment deleted", nil))
}
