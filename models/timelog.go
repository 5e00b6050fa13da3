package models

import (
	"time"

	"gorm.io/gorm"
)

// TimeLog records hours worked against a task or project
type TimeLog struct {
	gorm.Model
	UserID    uint  `gorm:"not null;index" json:"user_id"`
	ProjectID uint  `gorm:"not null;index" json:"project_id"`
	TaskID    *uint `gorm:"index" json:"task_id,omitempty"`

	HoursSpent  float64   `gorm:"not null" json:"hours_spent"`
	LogDate     time.Time `gorm:"not null;index" json:"log_date"`
	Description string    `json:"description"`
	Billable    bool      `gorm:"default:false" json:"billable"`

	// Relations
	User    User    `json:"user,omitempty"`
	Project Project `json:"-"`
	Task    *Task   `json:"task,omitempty"`
}
