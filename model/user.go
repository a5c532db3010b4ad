package model

import (
	"time"

	"gorm.io/gorm"
)

// Staff roles
const (
	UserRoleAdmin   = "admin"
	UserRoleTeacher = "teacher"
	UserRoleDesk    = "desk" // front-desk staff
)

// User represents a staff account (admin, teacher, front desk)
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Role         string         `gorm:"type:varchar(20);default:'desk'" json:"role"` // admin, teacher, desk
	Phone        string         `gorm:"type:varchar(30)" json:"phone,omitempty"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Notifications  []UserNotification  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	MergeJobs      []MergeJob          `gorm:"foreignKey:CreatedByUserID;constraint:OnDelete:CASCADE" json:"-"`
	AdminAuditLog  []AdminAuditLog     `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAdmin returns true for admin accounts
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
