package models

import (
	"time"

	"gorm.io/gorm"
)

// Milestone statuses
const (
	MilestoneStatusPlanned    = "planned"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusCompleted  = "completed"
	MilestoneStatusCancelled  = "cancelled"
)

// ValidMilestoneStatus reports whether s is one of the milestone status values.
func ValidMilestoneStatus(s string) bool {
	switch s {
	case MilestoneStatusPlanned, MilestoneStatusInProgress, MilestoneStatusCompleted, MilestoneStatusCancelled:
		return true
	}
	return false
}

// Milestone is a named checkpoint within a project aggregating tasks
type Milestone struct {
	gorm.Model
	ProjectID   uint       `gorm:"not null;index" json:"project_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	Status      string     `gorm:"default:'planned'" json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// Stored value; recomputed from child task completion on read
	CompletionPercentage int `gorm:"default:0" json:"completion_percentage"`

	// Relations
	Project Project `json:"-"`
	Tasks   []Task  `gorm:"foreignKey:MilestoneID" json:"tasks,omitempty"`
}
