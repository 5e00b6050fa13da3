package models

import (
	"time"

	"gorm.io/gorm"
)

// Task statuses
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Task types
const (
	TaskTypeFeature     = "feature"
	TaskTypeBug         = "bug"
	TaskTypeImprovement = "improvement"
	TaskTypeChore       = "chore"
)

// ValidTaskStatus reports whether s is one of the task status values.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskOpen reports whether the status counts as incomplete work. Members
// holding open tasks cannot be removed from a project.
func TaskOpen(status string) bool {
	return status != TaskStatusCompleted && status != TaskStatusCancelled
}

// Task represents a unit of work within a project
type Task struct {
	gorm.Model
	ProjectID    uint       `gorm:"not null;index" json:"project_id"`
	MilestoneID  *uint      `gorm:"index" json:"milestone_id,omitempty"`
	ParentTaskID *uint      `gorm:"index" json:"parent_task_id,omitempty"`
	AssigneeID   *uint      `gorm:"index" json:"assignee_id,omitempty"`
	CreatedBy    uint       `gorm:"not null" json:"created_by"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `json:"description"`
	Status       string     `gorm:"default:'todo';index" json:"status"`
	Priority     string     `gorm:"default:'medium'" json:"priority"`
	Type         string     `gorm:"default:'feature'" json:"type"`
	DueDate      *time.Time `json:"due_date,omitempty"`

	EstimatedHours     float64 `gorm:"default:0" json:"estimated_hours"`
	ActualHours        float64 `gorm:"default:0" json:"actual_hours"`
	ProgressPercentage int     `gorm:"default:0" json:"progress_percentage"`

	// Relations
	Project   Project   `json:"-"`
	Milestone *Milestone `gorm:"foreignKey:MilestoneID" json:"milestone,omitempty"`
	Assignee  *User      `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Subtasks  []Task    `gorm:"foreignKey:ParentTaskID" json:"subtasks,omitempty"`
	Comments  []Comment `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	TimeLogs  []TimeLog `gorm:"foreignKey:TaskID" json:"time_logs,omitempty"`
}
