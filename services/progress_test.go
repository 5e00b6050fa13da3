package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskory/config"
	"taskory/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	// A single connection keeps every session on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "x",
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func seedProject(t *testing.T, db *gorm.DB, owner *models.User) *models.Project {
	t.Helper()
	project := &models.Project{
		Name:      "Test Project",
		Status:    models.ProjectStatusActive,
		Priority:  models.PriorityMedium,
		CreatedBy: owner.ID,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return project
}

func TestComputeProgress(t *testing.T) {
	cases := []struct {
		name      string
		logged    float64
		estimated float64
		completed int
		total     int
		want      int
	}{
		{"nothing to measure", 0, 0, 0, 0, 0},
		{"half of estimate logged", 5, 10, 0, 0, 50},
		{"overrun capped at 100", 25, 10, 0, 0, 100},
		{"ratio rounds down", 1, 3, 0, 0, 33},
		{"ratio rounds up", 2, 3, 0, 0, 67},
		{"task fallback quarter done", 0, 0, 1, 4, 25},
		{"task fallback all done", 0, 0, 3, 3, 100},
		{"estimate takes precedence over tasks", 5, 10, 3, 3, 50},
		{"exact full estimate", 10, 10, 0, 0, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeProgress(tc.logged, tc.estimated, tc.completed, tc.total)
			if got != tc.want {
				t.Fatalf("ComputeProgress(%v, %v, %d, %d) = %d, want %d",
					tc.logged, tc.estimated, tc.completed, tc.total, got, tc.want)
			}
		})
	}
}

func TestProjectProgressFromTimeLogs(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "alice")
	project := seedProject(t, db, user)

	task := models.Task{
		ProjectID:      project.ID,
		CreatedBy:      user.ID,
		Title:          "Build the thing",
		Status:         models.TaskStatusInProgress,
		EstimatedHours: 10,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	log := models.TimeLog{
		UserID:     user.ID,
		ProjectID:  project.ID,
		TaskID:     &task.ID,
		HoursSpent: 4,
		LogDate:    task.CreatedAt,
	}
	if err := db.Create(&log).Error; err != nil {
		t.Fatalf("failed to create time log: %v", err)
	}

	got, err := ProjectProgress(db, project.ID)
	if err != nil {
		t.Fatalf("ProjectProgress failed: %v", err)
	}
	if got != 40 {
		t.Fatalf("ProjectProgress = %d, want 40", got)
	}
}

func TestProjectProgressFallsBackToTaskCounts(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "bob")
	project := seedProject(t, db, user)

	statuses := []string{
		models.TaskStatusCompleted,
		models.TaskStatusCompleted,
		models.TaskStatusTodo,
		models.TaskStatusInProgress,
	}
	for i, status := range statuses {
		task := models.Task{
			ProjectID: project.ID,
			CreatedBy: user.ID,
			Title:     "Task",
			Status:    status,
		}
		if err := db.Create(&task).Error; err != nil {
			t.Fatalf("failed to create task %d: %v", i, err)
		}
	}

	got, err := ProjectProgress(db, project.ID)
	if err != nil {
		t.Fatalf("ProjectProgress failed: %v", err)
	}
	if got != 50 {
		t.Fatalf("ProjectProgress = %d, want 50", got)
	}
}

func TestSyncMilestoneProgressPersists(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "carol")
	project := seedProject(t, db, user)

	milestone := models.Milestone{
		ProjectID: project.ID,
		Name:      "Beta",
		Status:    models.MilestoneStatusInProgress,
	}
	if err := db.Create(&milestone).Error; err != nil {
		t.Fatalf("failed to create milestone: %v", err)
	}

	for _, status := range []string{models.TaskStatusCompleted, models.TaskStatusTodo} {
		task := models.Task{
			ProjectID:   project.ID,
			MilestoneID: &milestone.ID,
			CreatedBy:   user.ID,
			Title:       "Task",
			Status:      status,
		}
		if err := db.Create(&task).Error; err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
	}

	got, err := SyncMilestoneProgress(db, &milestone)
	if err != nil {
		t.Fatalf("SyncMilestoneProgress failed: %v", err)
	}
	if got != 50 {
		t.Fatalf("SyncMilestoneProgress = %d, want 50", got)
	}

	var stored models.Milestone
	if err := db.First(&stored, milestone.ID).Error; err != nil {
		t.Fatalf("failed to reload milestone: %v", err)
	}
	if stored.CompletionPercentage != 50 {
		t.Fatalf("stored completion = %d, want 50", stored.CompletionPercentage)
	}
}
