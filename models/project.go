package models

import (
	"time"

	"gorm.io/gorm"
)

// Project statuses
const (
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCancelled = "cancelled"
)

// Priorities shared by projects and tasks
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Project member roles
const (
	RoleViewer         = "viewer"
	RoleMember         = "member"
	RoleDeveloper      = "developer"
	RoleProjectManager = "project_manager"
	RoleAdmin          = "admin"
)

// ValidProjectStatus reports whether s is one of the project status values.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusCompleted, ProjectStatusOnHold, ProjectStatusCancelled:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ValidMemberRole reports whether r is a known project member role.
func ValidMemberRole(r string) bool {
	switch r {
	case RoleViewer, RoleMember, RoleDeveloper, RoleProjectManager, RoleAdmin:
		return true
	}
	return false
}

// PriorityRank maps a priority to its sort weight, urgent first.
func PriorityRank(p string) int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Project represents a project owning milestones, tasks and members
type Project struct {
	gorm.Model
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	Status      string     `gorm:"default:'active';index" json:"status"`
	Priority    string     `gorm:"default:'medium'" json:"priority"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Budget      *float64   `json:"budget,omitempty"`
	CreatedBy   uint       `gorm:"not null;index" json:"created_by"`

	// Derived from task completion or logged/estimated hours on read
	ProgressPercentage int `gorm:"default:0" json:"progress_percentage"`

	// Relations
	Creator    User            `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Members    []ProjectMember `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Milestones []Milestone     `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
	Tasks      []Task          `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	TimeLogs   []TimeLog       `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"time_logs,omitempty"`
}

// ProjectMember grants a user a role scoped to one project
type ProjectMember struct {
	gorm.Model
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_user" json:"project_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_project_user" json:"user_id"`
	Role      string    `gorm:"default:'member'" json:"role"`
	JoinedAt  time.Time `json:"joined_at"`

	// Relations
	Project Project `json:"-"`
	User    User    `json:"user,omitempty"`
}

// IsManager reports whether the member can perform privileged project
// operations (role changes, deletes of others' content).
func (m *ProjectMember) IsManager() bool {
	return m.Role == RoleProjectManager || m.Role == RoleAdmin
}
