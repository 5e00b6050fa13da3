package controller

import (
	"log"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/services"
	"taskory/utils"
)

type InvitationController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Authz  *services.Authorizer
}

func NewInvitationController(db *gorm.DB, logger *log.Logger) *InvitationController {
	return &InvitationController{
		DB:     db,
		Logger: logger,
		Authz:  services.NewAuthorizer(db),
	}
}

type InvitationInput struct {
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"omitempty,oneof=viewer member developer project_manager admin"`
	ProjectID *uint  `json:"project_id"`
}

// createInvitation runs the create checks and inserts the row. Shared by
// the single and bulk endpoints.
func (ic *InvitationController) createInvitation(user *models.User, input InvitationInput) (*models.Invitation, error) {
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid email address")
	}
	if input.Role == "" {
		input.Role = models.RoleMember
	}

	// An existing account means nothing to provision
	var existingUser models.User
	if err := ic.DB.Where("email = ?", input.Email).First(&existingUser).Error; err == nil {
		return nil, fiber.NewError(fiber.StatusConflict, "A user with this email already exists")
	}

	// One pending invitation per email
	var existingInvitation models.Invitation
	if err := ic.DB.Where("email = ? AND status = ?", input.Email, models.InvitationStatusPending).
		First(&existingInvitation).Error; err == nil {
		return nil, fiber.NewError(fiber.StatusConflict, "A pending invitation for this email already exists")
	}

	projectName := ""
	if input.ProjectID != nil {
		var project models.Project
		if err := ic.DB.First(&project, *input.ProjectID).Error; err != nil {
			return nil, fiber.NewError(fiber.StatusNotFound, "Project not found")
		}
		if err := ic.Authz.RequireManager(user, project.ID); err != nil {
			if services.IsAuthzError(err) {
				return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return nil, err
		}
		projectName = project.Name
	}

	token, err := utils.GenerateInvitationToken()
	if err != nil {
		return nil, err
	}

	invitation := models.Invitation{
		Email:     input.Email,
		Role:      input.Role,
		ProjectID: input.ProjectID,
		InvitedBy: user.ID,
		Token:     token,
		Status:    models.InvitationStatusPending,
		ExpiresAt: time.Now().Add(models.InvitationTTL),
	}
	if err := ic.DB.Create(&invitation).Error; err != nil {
		return nil, err
	}

	// Best-effort delivery: the invitation row is the source of truth and a
	// failed email can be retried via resend.
	if err := utils.SendInvitationEmail(invitation.Email, user.FullName(), projectName,
		invitation.Role, invitation.Token, invitation.ExpiresAt); err != nil {
		utils.LogError("invitation_email", err, map[string]interface{}{
			"invitation_id": invitation.ID,
			"email":         invitation.Email,
		})
	}

	return &invitation, nil
}

// CreateInvitation invites one email address
func (ic *InvitationController) CreateInvitation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input InvitationInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	invitation, err := ic.createInvitation(user, input)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return utils.ErrorResponse(c, fe.Code, fe.Message, nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create invitation", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(invitation))
}

// BulkCreateInvitations invites several emails at once. Each item succeeds
// or fails on its own; the response carries per-item results.
func (ic *InvitationController) BulkCreateInvitations(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Invitations []InvitationInput `json:"invitations" validate:"required,min=1,max=50"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	type itemResult struct {
		Email   string `json:"email"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	results := make([]itemResult, 0, len(input.Invitations))

	for _, item := range input.Invitations {
		if _, err := ic.createInvitation(user, item); err != nil {
			msg := "failed to create invitation"
			if fe, ok := err.(*fiber.Error); ok {
				msg = fe.Message
			}
			results = append(results, itemResult{Email: item.Email, Error: msg})
			continue
		}
		results = append(results, itemResult{Email: item.Email, Success: true})
	}

	return c.JSON(utils.SuccessResponse(results))
}

// GetInvitations lists invitations the caller sent, optionally by status
func (ic *InvitationController) GetInvitations(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, limit, offset := utils.ParsePagination(c)

	query := ic.DB.Model(&models.Invitation{})
	if !user.IsAdmin {
		query = query.Where("invited_by = ?", user.ID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count invitations", err)
	}

	var invitations []models.Invitation
	if err := query.Preload("Project").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&invitations).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitations", err)
	}

	return c.JSON(utils.PaginatedResponse(invitations, page, limit, total))
}

// GetInvitationByToken is the public lookup the invitee uses before
// accepting. Expired pending invitations are reported as expired.
func (ic *InvitationController) GetInvitationByToken(c *fiber.Ctx) error {
	token := c.Params("token")

	var invitation models.Invitation
	if err := ic.DB.Preload("Project").Preload("Inviter").
		Where("token = ?", token).First(&invitation).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Invitation not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitation", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"email":      invitation.Email,
		"role":       invitation.Role,
		"project":    invitation.Project,
		"inviter":    invitation.Inviter.FullName(),
		"status":     invitation.Status,
		"expired":    invitation.Expired(),
		"expires_at": invitation.ExpiresAt,
	}))
}

// AcceptInvitation consumes a pending, non-expired token: it provisions the
// new user and, when the invitation names a project, the membership row,
// both inside one transaction.
func (ic *InvitationController) AcceptInvitation(c *fiber.Ctx) error {
	token := c.Params("token")

	var input struct {
		Username  string `json:"username" validate:"required,min=3,max=50"`
		Password  string `json:"password" validate:"required,min=8"`
		FirstName string `json:"first_name" validate:"omitempty,max=100"`
		LastName  string `json:"last_name" validate:"omitempty,max=100"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var invitation models.Invitation
	if err := ic.DB.Where("token = ?", token).First(&invitation).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Invitation not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitation", err)
	}

	if invitation.Status != models.InvitationStatusPending {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invitation is no longer pending", nil)
	}
	if invitation.Expired() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invitation has expired", nil)
	}

	var existingUser models.User
	if err := ic.DB.Where("username = ?", input.Username).First(&existingUser).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Username already taken", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	var user models.User
	err = ic.DB.Transaction(func(tx *gorm.DB) error {
		user = models.User{
			Email:         invitation.Email,
			Username:      input.Username,
			PasswordHash:  string(hashedPassword),
			FirstName:     input.FirstName,
			LastName:      input.LastName,
			IsActive:      true,
			EmailVerified: true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		if invitation.ProjectID != nil {
			member := models.ProjectMember{
				ProjectID: *invitation.ProjectID,
				UserID:    user.ID,
				Role:      invitation.Role,
				JoinedAt:  time.Now(),
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}

		return tx.Model(&invitation).Update("status", models.InvitationStatusAccepted).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to accept invitation", err)
	}

	accessToken, refreshToken, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate tokens", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         &user,
	}))
}

// DeclineInvitation is the public terminal transition from pending
func (ic *InvitationController) DeclineInvitation(c *fiber.Ctx) error {
	token := c.Params("token")

	var invitation models.Invitation
	if err := ic.DB.Where("token = ?", token).First(&invitation).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Invitation not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitation", err)
	}

	if invitation.Status != models.InvitationStatusPending {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invitation is no longer pending", nil)
	}

	if err := ic.DB.Model(&invitation).Update("status", models.InvitationStatusDeclined).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to decline invitation", err)
	}

	return c.JSON(utils.MessageResponse("Invitation declined", nil))
}

// CancelInvitation is the inviter-side terminal transition from pending
func (ic *InvitationController) CancelInvitation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	invitationID := utils.ParseUint(c.Params("id"))

	var invitation models.Invitation
	if err := ic.DB.First(&invitation, invitationID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Invitation not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitation", err)
	}

	if invitation.InvitedBy != user.ID && !user.IsAdmin {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only the inviter can cancel an invitation", nil)
	}
	if invitation.Status != models.InvitationStatusPending {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invitation is no longer pending", nil)
	}

	if err := ic.DB.Model(&invitation).Update("status", models.InvitationStatusCancelled).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to cancel invitation", err)
	}

	return c.JSON(utils.MessageResponse("Invitation cancelled", nil))
}

// ResendInvitation issues a fresh token and expiry for a pending
// invitation; the old token stops working immediately.
func (ic *InvitationController) ResendInvitation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	invitationID := utils.ParseUint(c.Params("id"))

	var invitation models.Invitation
	if err := ic.DB.Preload("Project").First(&invitation, invitationID).Error; err != nil {
		if notFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Invitation not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invitation", err)
	}

	if invitation.InvitedBy != user.ID && !user.IsAdmin {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only the inviter can resend an invitation", nil)
	}
	if invitation.Status != models.InvitationStatusPending {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only pending invitations can be resent", nil)
	}

	token, err := utils.GenerateInvitationToken()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate token", err)
	}

	invitation.Token = token
	invitation.ExpiresAt = time.Now().Add(models.InvitationTTL)
	if err := ic.DB.Save(&invitation).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resend invitation", err)
	}

	projectName := ""
	if invitation.Project != nil {
		projectName = invitation.Project.Name
	}
	if err := utils.SendInvitationEmail(invitation.Email, user.FullName(), projectName,
		invitation.Role, invitation.Token, invitation.ExpiresAt); err != nil {
		utils.LogError("invitation_email", err, map[string]interface{}{
			"invitation_id": invitation.ID,
			"email":         invitation.Email,
		})
	}

	return c.JSON(utils.MessageResponse("Invitation resent", invitation))
}
