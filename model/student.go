package model

import (
	"time"

	"gorm.io/gorm"
)

// StudentStatus represents the lifecycle state of a student record
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusOnHold    StudentStatus = "on_hold"
	StudentStatusWithdrawn StudentStatus = "withdrawn"
	StudentStatusProspect  StudentStatus = "prospect"
)

// Student represents a person enrolled at (or prospective to) the academy.
//
// ExternalID is the identifier carried over from the legacy system. It either
// encodes identity parts ("김민수_대구초_3", optionally with a disambiguation
// letter on the name, e.g. "김민수A_대구초_3") or is an opaque auto-generated
// key (pure digits or a long alphanumeric token). The dedup engine classifies
// and parses it; see services/dedup.
type Student struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	ExternalID string         `gorm:"uniqueIndex;not null" json:"external_id"`
	Name       string         `gorm:"not null;index" json:"name"`
	School     string         `gorm:"type:varchar(100)" json:"school"` // free text, Korean conventions ("대구초등학교" or "대구초")
	Grade      string         `gorm:"type:varchar(30)" json:"grade"`   // free text, e.g. "초3", "중1"
	Status     StudentStatus  `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Optional profile fields. These are the fields the merge backfill step
	// copies from secondary records into the primary when the primary's value
	// is empty (see services.MergeService).
	EnglishName      string `gorm:"type:varchar(100)" json:"english_name,omitempty"`
	Email            string `gorm:"type:varchar(255)" json:"email,omitempty"`
	StudentPhone     string `gorm:"type:varchar(30)" json:"student_phone,omitempty"`
	ParentName       string `gorm:"type:varchar(100)" json:"parent_name,omitempty"`
	ParentPhone      string `gorm:"type:varchar(30)" json:"parent_phone,omitempty"`
	ParentEmail      string `gorm:"type:varchar(255)" json:"parent_email,omitempty"`
	BirthDate        string `gorm:"type:varchar(20)" json:"birth_date,omitempty"`
	Address          string `gorm:"type:text" json:"address,omitempty"`
	AttendanceNumber string `gorm:"type:varchar(30)" json:"attendance_number,omitempty"`
	BusRoute         string `gorm:"type:varchar(100)" json:"bus_route,omitempty"`
	EmergencyContact string `gorm:"type:varchar(30)" json:"emergency_contact,omitempty"`
	CounselingNote   string `gorm:"type:text" json:"counseling_note,omitempty"`
	BillingName      string `gorm:"type:varchar(100)" json:"billing_name,omitempty"`
	BillingContact   string `gorm:"type:varchar(30)" json:"billing_contact,omitempty"`
	BillingNote      string `gorm:"type:text" json:"billing_note,omitempty"`
	SettlementDay    string `gorm:"type:varchar(10)" json:"settlement_day,omitempty"`
	TuitionNote      string `gorm:"type:text" json:"tuition_note,omitempty"`
	Memo             string `gorm:"type:text" json:"memo,omitempty"`

	// Notification flags are not part of the backfill list (an unset bool is
	// indistinguishable from an explicit false).
	NotifySMS       bool `gorm:"default:true" json:"notify_sms"`
	NotifyAttend    bool `gorm:"default:true" json:"notify_attend"`
	CreatedByUserID uint `gorm:"index" json:"created_by_user_id,omitempty"`

	// Relationships
	Enrollments []Enrollment `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
}

// IsActive returns true for students currently attending
func (s *Student) IsActive() bool {
	return s.Status == StudentStatusActive
}
