package models

import "gorm.io/gorm"

// Comment is attached to exactly one of task, project or milestone.
// Replies nest one level via ParentCommentID.
type Comment struct {
	gorm.Model
	TaskID          *uint `gorm:"index" json:"task_id,omitempty"`
	ProjectID       *uint `gorm:"index" json:"project_id,omitempty"`
	MilestoneID     *uint `gorm:"index" json:"milestone_id,omitempty"`
	ParentCommentID *uint `gorm:"index" json:"parent_comment_id,omitempty"`

	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Content string `gorm:"not null" json:"content"`
	Edited  bool   `gorm:"default:false" json:"edited"`

	// Relations
	User    User      `json:"user,omitempty"`
	Replies []Comment `gorm:"foreignKey:ParentCommentID" json:"replies,omitempty"`
}

// Attachment stores uploaded file metadata linked to one owning entity
type Attachment struct {
	gorm.Model
	TaskID      *uint `gorm:"index" json:"task_id,omitempty"`
	ProjectID   *uint `gorm:"index" json:"project_id,omitempty"`
	MilestoneID *uint `gorm:"index" json:"milestone_id,omitempty"`
	CommentID   *uint `gorm:"index" json:"comment_id,omitempty"`

	UploadedBy  uint   `gorm:"not null;index" json:"uploaded_by"`
	FileName    string `gorm:"not null" json:"file_name"`
	FilePath    string `gorm:"not null" json:"file_path"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`

	Uploader User `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
}
