package routes

import (
	"log"
	"os"
	"time"

	"taskory/config"
	controller "taskory/controllers"
	"taskory/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

var startedAt = time.Now()

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/api/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize controllers with their respective loggers
	projectController := controller.NewProjectController(db, log.New(os.Stdout, "PROJECT: ", log.LstdFlags))
	taskController := controller.NewTaskController(db, log.New(os.Stdout, "TASK: ", log.LstdFlags))
	milestoneController := controller.NewMilestoneController(db, log.New(os.Stdout, "MILESTONE: ", log.LstdFlags))
	commentController := controller.NewCommentController(db, log.New(os.Stdout, "COMMENT: ", log.LstdFlags))
	timeLogController := controller.NewTimeLogController(db, log.New(os.Stdout, "TIMELOG: ", log.LstdFlags))
	teamController := controller.NewTeamController(db, log.New(os.Stdout, "TEAM: ", log.LstdFlags))
	notificationController := controller.NewNotificationController(db, log.New(os.Stdout, "NOTIFY: ", log.LstdFlags))
	invitationController := controller.NewInvitationController(db, log.New(os.Stdout, "INVITE: ", log.LstdFlags))
	attachmentController := controller.NewAttachmentController(db, log.New(os.Stdout, "ATTACH: ", log.LstdFlags))

	// Public invitation endpoints: the invitee has no account yet
	public := app.Group("/api/invitations/token", middleware.APIRateLimiter())
	public.Get("/:token", invitationController.GetInvitationByToken)
	public.Post("/:token/accept", invitationController.AcceptInvitation)
	public.Post("/:token/decline", invitationController.DeclineInvitation)

	// API group with protection and rate limiting
	api := app.Group("/api", middleware.Protected(), middleware.APIRateLimiter(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Project routes
	project := api.Group("/projects")
	project.Post("/", projectController.CreateProject)
	project.Get("/", projectController.GetProjects)
	project.Get("/:id", projectController.GetProject)
	project.Put("/:id", projectController.UpdateProject)
	project.Delete("/:id", projectController.DeleteProject)
	project.Get("/:id/stats", projectController.GetProjectStats)
	project.Get("/:id/activity", projectController.GetProjectActivity)

	// Team routes nested under a project
	project.Get("/:id/members", teamController.GetMembers)
	project.Post("/:id/members", teamController.AddMember)
	project.Put("/:id/members/:userId", teamController.UpdateMemberRole)
	project.Delete("/:id/members/:userId", teamController.RemoveMember)

	// Task routes
	task := api.Group("/tasks")
	task.Post("/", taskController.CreateTask)
	task.Get("/", taskController.GetTasks)
	task.Get("/:id", taskController.GetTask)
	task.Put("/:id", taskController.UpdateTask)
	task.Delete("/:id", taskController.DeleteTask)
	task.Patch("/:id/status", taskController.UpdateTaskStatus)
	task.Patch("/:id/progress", taskController.UpdateTaskProgress)
	task.Patch("/:id/assign", taskController.AssignTask)

	// Milestone routes
	milestone := api.Group("/milestones")
	milestone.Post("/", milestoneController.CreateMilestone)
	milestone.Get("/", milestoneController.GetMilestones)
	milestone.Get("/:id", milestoneController.GetMilestone)
	milestone.Put("/:id", milestoneController.UpdateMilestone)
	milestone.Delete("/:id", milestoneController.DeleteMilestone)
	milestone.Get("/:id/stats", milestoneController.GetMilestoneStats)

	// Comment routes
	comment := api.Group("/comments")
	comment.Post("/", commentController.CreateComment)
	comment.Get("/", commentController.GetComments)
	comment.Put("/:id", commentController.UpdateComment)
	comment.Delete("/:id", commentController.DeleteComment)

	// Time log routes
	timeLog := api.Group("/time-logs")
	timeLog.Get("/summary", timeLogController.GetTimeSummary)
	timeLog.Get("/by-user", timeLogController.GetTimeByUser)
	timeLog.Get("/by-project", timeLogController.GetTimeByProject)
	timeLog.Get("/by-category", timeLogController.GetTimeByCategory)
	timeLog.Get("/export", timeLogController.ExportTimeLogsCSV)
	timeLog.Post("/", timeLogController.CreateTimeLog)
	timeLog.Get("/", timeLogController.GetTimeLogs)
	timeLog.Put("/:id", timeLogController.UpdateTimeLog)
	timeLog.Delete("/:id", timeLogController.DeleteTimeLog)

	// Team/user routes
	team := api.Group("/team")
	team.Get("/users", teamController.GetUsers)
	team.Post("/users/:id/deactivate", middleware.AdminOnly(), teamController.DeactivateUser)

	// Notification routes
	notification := api.Group("/notifications")
	notification.Get("/", notificationController.GetNotifications)
	notification.Get("/unread-count", notificationController.GetUnreadCount)
	notification.Patch("/:id/read", notificationController.MarkRead)
	notification.Post("/mark-all-read", notificationController.MarkAllRead)
	notification.Delete("/:id", notificationController.DeleteNotification)
	notification.Post("/send", middleware.AdminOnly(), notificationController.SendNotification)
	notification.Post("/cleanup", middleware.AdminOnly(), notificationController.CleanupNotifications)

	// Invitation routes (inviter side)
	invitation := api.Group("/invitations")
	invitation.Post("/", invitationController.CreateInvitation)
	invitation.Post("/bulk", invitationController.BulkCreateInvitations)
	invitation.Get("/", invitationController.GetInvitations)
	invitation.Post("/:id/cancel", invitationController.CancelInvitation)
	invitation.Post("/:id/resend", invitationController.ResendInvitation)

	// Attachment routes
	attachment := api.Group("/attachments")
	attachment.Post("/", attachmentController.UploadAttachment)
	attachment.Get("/", attachmentController.GetAttachments)
	attachment.Get("/:id", attachmentController.GetAttachment)
	attachment.Delete("/:id", attachmentController.DeleteAttachment)

	// WebSocket route for project-scoped live updates
	app.Get("/ws/projects", websocket.New(func(c *websocket.Conn) {
		controller.HandleProjectWS(c)
	}))

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Health check endpoint with process uptime
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"uptime": time.Since(startedAt).String(),
		})
	})

	// Uploaded files are served statically
	app.Static("/uploads", config.AppConfig.UploadDir)

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "The requested resource was not found",
		})
	})
}
