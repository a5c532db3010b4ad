package model

import (
	"time"

	"gorm.io/datatypes"
)

// Enrollment represents a student's association with one class offering.
//
// An enrollment with no EndDate is currently active. Ending an enrollment sets
// EndDate (soft close, history preserved). During a merge, a losing active
// enrollment that collides with an existing active enrollment on the primary
// is dropped instead of transferred.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	StudentID uint      `gorm:"index;not null" json:"student_id"`
	Subject   string    `gorm:"type:varchar(50);not null" json:"subject"`     // e.g. "math"
	ClassName string    `gorm:"type:varchar(100);not null" json:"class_name"` // e.g. "A반"
	Teacher   string    `gorm:"type:varchar(100)" json:"teacher,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"index" json:"end_date,omitempty"` // nil = currently active

	// Extra holds fields the merge logic treats as opaque (tuition overrides,
	// seat assignments, per-class flags from the legacy system).
	Extra datatypes.JSON `gorm:"type:jsonb" json:"extra,omitempty"`

	// Provenance set when this enrollment was transferred during a merge.
	MigratedFrom string     `gorm:"type:varchar(255)" json:"migrated_from,omitempty"` // external ID of the source student
	MigratedAt   *time.Time `json:"migrated_at,omitempty"`

	// Relationships
	Student Student `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsActive returns true when the enrollment has no end date
func (e *Enrollment) IsActive() bool {
	return e.EndDate == nil
}

// Signature returns the subject_className pairing used to detect collisions
// between active enrollments during merge.
func (e *Enrollment) Signature() string {
	return e.Subject + "_" + e.ClassName
}
