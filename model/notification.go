package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType represents the type/severity of notification
type NotificationType string

const (
	NotificationTypeInfo       NotificationType = "info"
	NotificationTypeSuccess    NotificationType = "success"
	NotificationTypeWarning    NotificationType = "warning"
	NotificationTypeError      NotificationType = "error"
	NotificationTypeInProgress NotificationType = "in_progress"
)

// NotificationCategory represents the category of notification
type NotificationCategory string

const (
	NotificationCategoryStudentMerge NotificationCategory = "student_merge"
	NotificationCategoryEnrollment   NotificationCategory = "enrollment"
	NotificationCategoryGeneral      NotificationCategory = "general"
)

// UserNotification represents a notification for a staff user
type UserNotification struct {
	ID         uint                 `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
	DeletedAt  gorm.DeletedAt       `gorm:"index" json:"deleted_at,omitempty"`
	UserID     uint                 `gorm:"index;not null" json:"user_id"`
	Type       NotificationType     `gorm:"type:varchar(20);not null" json:"type"`
	Category   NotificationCategory `gorm:"type:varchar(30);not null" json:"category"`
	Title      string               `gorm:"type:varchar(255);not null" json:"title"`
	Message    string               `gorm:"type:text" json:"message"`
	Read       bool                 `gorm:"default:false" json:"read"`
	MergeJobID *uint                `gorm:"index" json:"merge_job_id,omitempty"` // Link to MergeJob if applicable
	Metadata   datatypes.JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Relationships
	User     User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	MergeJob *MergeJob `gorm:"foreignKey:MergeJobID;constraint:OnDelete:SET NULL" json:"merge_job,omitempty"`
}

// NotificationMetadata represents common metadata fields
type NotificationMetadata struct {
	TotalGroups            int      `json:"total_groups,omitempty"`
	ProcessedGroups        int      `json:"processed_groups,omitempty"`
	FailedGroups           int      `json:"failed_groups,omitempty"`
	TransferredEnrollments int      `json:"transferred_enrollments,omitempty"`
	DeletedStudents        int      `json:"deleted_students,omitempty"`
	CurrentGroup           string   `json:"current_group,omitempty"` // human label of the group being merged
	Progress               int      `json:"progress,omitempty"`      // 0-100
	Errors                 []string `json:"errors,omitempty"`
}

// NotificationResponse represents the API response format for a notification
type NotificationResponse struct {
	ID         uint                 `json:"id"`
	Type       NotificationType     `json:"type"`
	Category   NotificationCategory `json:"category"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Read       bool                 `json:"read"`
	MergeJobID *uint                `json:"merge_job_id,omitempty"`
	Metadata   datatypes.JSON       `json:"metadata,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// ToResponse converts a UserNotification to NotificationResponse
func (n *UserNotification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		Type:       n.Type,
		Category:   n.Category,
		Title:      n.Title,
		Message:    n.Message,
		Read:       n.Read,
		MergeJobID: n.MergeJobID,
		Metadata:   n.Metadata,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}
