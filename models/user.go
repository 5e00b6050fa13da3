package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	Username      string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash  string `gorm:"not null" json:"-"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`

	// Profile information
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Timezone  string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	IsAdmin     bool       `gorm:"default:false" json:"is_admin"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Relations
	Memberships   []ProjectMember `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	AssignedTasks []Task          `gorm:"foreignKey:AssigneeID" json:"assigned_tasks,omitempty"`
	TimeLogs      []TimeLog       `gorm:"foreignKey:UserID" json:"time_logs,omitempty"`
	Notifications []Notification  `gorm:"foreignKey:UserID" json:"notifications,omitempty"`
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// RefreshToken stores issued refresh tokens so they can be revoked on logout
type RefreshToken struct {
	gorm.Model
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`

	User User `json:"-"`
}
