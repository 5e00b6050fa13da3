package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/services"
	"taskory/utils"
)

type CommentController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewCommentController(db *gorm.DB, logger *log.Logger) *CommentController {
	return &CommentController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

// CreateComment attaches a comment to exactly one of task, project or
// milestone, or as a one-level reply to another comment.
func (cc *CommentController) CreateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		TaskID          *uint  `json:"task_id"`
		ProjectID       *uint  `json:"project_id"`
		MilestoneID     *uint  `json:"milestone_id"`
		ParentCommentID *uint  `json:"parent_comment_id"`
		Content         string `json:"content" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	targets := 0
	for _, set := range []bool{input.TaskID != nil, input.ProjectID != nil, input.MilestoneID != nil} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Comment must target exactly one of task, project or milestone", nil)
	}

	comment := models.Comment{
		TaskID:          input.TaskID,
		ProjectID:       input.ProjectID,
		MilestoneID:     input.MilestoneID,
		ParentCommentID: input.ParentCommentID,
		UserID:          user.ID,
		Content:         input.Content,
	}

	projectID, err := cc.Authz.ProjectIDForComment(&comment)
	if err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Comment target not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve comment target", err)
	}

	if err := cc.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	if input.ParentCommentID != nil {
		var parent models.Comment
		if err := cc.DB.First(&parent, *input.ParentCommentID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Parent comment not found", nil)
		}
		// Replies nest one level only
		if parent.ParentCommentID != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot reply to a reply", nil)
		}

		// Let the comment author know about the reply
		if parent.UserID != user.ID {
			services.Notify(cc.DB, parent.UserID, models.NotificationTypeComment,
				"New reply to your comment", user.FullName()+" replied to your comment",
				"comment", &parent.ID)
		}
	}

	if err := cc.DB.Create(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create comment", err)
	}

	BroadcastProjectEvent(projectID, "comment_created", comment.ID)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(comment))
}

// GetComments lists top-level comments for one entity with replies preloaded
func (cc *CommentController) GetComments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := cc.DB.Model(&models.Comment{}).Where("parent_comment_id IS NULL")
	probe := models.Comment{}

	switch {
	case c.Query("task_id") != "":
		id := utils.ParseUint(c.Query("task_id"))
		probe.TaskID = &id
		query = query.Where("task_id = ?", id)
	case c.Query("project_id") != "":
		id := utils.ParseUint(c.Query("project_id"))
		probe.ProjectID = &id
		query = query.Where("comments.project_id = ?", id)
	case c.Query("milestone_id") != "":
		id := utils.ParseUint(c.Query("milestone_id"))
		probe.MilestoneID = &id
		query = query.Where("milestone_id = ?", id)
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "One of task_id, project_id or milestone_id is required", nil)
	}

	projectID, err := cc.Authz.ProjectIDForComment(&probe)
	if err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Comment target not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve comment target", err)
	}

	if err := cc.Authz.RequireMember(user, projectID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	page, limit, offset := utils.ParsePagination(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count comments", err)
	}

	var comments []models.Comment
	if err := query.Preload("User").Preload("Replies.User").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&comments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch comments", err)
	}

	return c.JSON(utils.PaginatedResponse(comments, page, limit, total))
}

// UpdateComment edits a comment's content. Author only.
func (cc *CommentController) UpdateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	commentID := utils.ParseUint(c.Params("id"))

	var comment models.Comment
	if err := cc.DB.First(&comment, commentID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Comment not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch comment", err)
	}

	if comment.UserID != user.ID {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only the author can edit a comment", nil)
	}

	var input struct {
		Content string `json:"content" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := cc.DB.Model(&comment).Updates(map[string]interface{}{
		"content": input.Content,
		"edited":  true,
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update comment", err)
	}

	return c.JSON(utils.SuccessResponse(comment))
}

// DeleteComment removes a comment. Blocked while replies exist; allowed for
// the author or a project manager.
func (cc *CommentController) DeleteComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	commentID := utils.ParseUint(c.Params("id"))

	var comment models.Comment
	if err := cc.DB.First(&comment, commentID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Comment not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch comment", err)
	}

	projectID, err := cc.Authz.ProjectIDForComment(&comment)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve comment target", err)
	}

	if err := cc.Authz.RequireManagerOrOwner(user, projectID, comment.UserID); err != nil {
		if services.IsAuthzError(err) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check access", err)
	}

	var replyCount int64
	if err := cc.DB.Model(&models.Comment{}).Where("parent_comment_id = ?", comment.ID).Count(&replyCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check replies", err)
	}
	if replyCount > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot delete a comment that has replies", nil)
	}

	if err := cc.DB.Delete(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete comment", err)
	}

	return c.JSON(utils.MessageResponse("Comment deleted", nil))
}
