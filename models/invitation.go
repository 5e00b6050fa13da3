package models

import (
	"time"

	"gorm.io/gorm"
)

// Invitation statuses. Expiry is derived from ExpiresAt at use-time,
// never stored as a status.
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusDeclined = "declined"
	InvitationStatusCancelled = "cancelled"
)

// InvitationTTL is how long a new or resent invitation stays usable.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is a single-use, token-guarded offer to create an account
// and optionally join a project
type Invitation struct {
	gorm.Model
	Email     string `gorm:"not null;index" json:"email"`
	Role      string `gorm:"default:'member'" json:"role"`
	ProjectID *uint  `gorm:"index" json:"project_id,omitempty"`
	InvitedBy uint   `gorm:"not null" json:"invited_by"`

	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	Status    string    `gorm:"default:'pending';index" json:"status"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`

	// Relations
	Project *Project `json:"project,omitempty"`
	Inviter User     `gorm:"foreignKey:InvitedBy" json:"inviter,omitempty"`
}

// Expired reports whether the invitation is past its expiry.
func (i *Invitation) Expired() bool {
	return time.Now().After(i.ExpiresAt)
}
