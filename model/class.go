package model

import (
	"time"

	"gorm.io/gorm"
)

// ClassOffering represents a class a student can be enrolled into
// (subject + class name, e.g. math "A반").
type ClassOffering struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Subject   string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_class_subject_name" json:"subject"`
	Name      string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_class_subject_name" json:"name"`
	Teacher   string         `gorm:"type:varchar(100)" json:"teacher,omitempty"`
	Schedule  string         `gorm:"type:varchar(255)" json:"schedule,omitempty"` // e.g. "월수금 16:00-17:30"
	Capacity  int            `gorm:"default:0" json:"capacity"`                   // 0 = unlimited
}
