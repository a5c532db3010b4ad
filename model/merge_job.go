package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MergeJobStatus represents the status of a batch merge job
type MergeJobStatus string

const (
	MergeJobStatusPending    MergeJobStatus = "pending"
	MergeJobStatusProcessing MergeJobStatus = "processing"
	MergeJobStatusCompleted  MergeJobStatus = "completed"
	MergeJobStatusFailed     MergeJobStatus = "failed"
	MergeJobStatusPartial    MergeJobStatus = "partially_completed"
)

// MergeJobGroupStatus represents the status of a single duplicate group within a job
type MergeJobGroupStatus string

const (
	MergeJobGroupStatusPending    MergeJobGroupStatus = "pending"
	MergeJobGroupStatusProcessing MergeJobGroupStatus = "processing"
	MergeJobGroupStatusCompleted  MergeJobGroupStatus = "completed"
	MergeJobGroupStatusFailed     MergeJobGroupStatus = "failed"
)

// MergeJob tracks a batch duplicate-merge operation. Groups are processed
// strictly one at a time; a failed group never aborts the batch.
type MergeJob struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Status                 MergeJobStatus `gorm:"type:varchar(25);default:'pending'" json:"status"`
	TotalGroups            int            `gorm:"default:0" json:"total_groups"`
	ProcessedGroups        int            `gorm:"default:0" json:"processed_groups"`
	FailedGroups           int            `gorm:"default:0" json:"failed_groups"`
	TransferredEnrollments int            `gorm:"default:0" json:"transferred_enrollments"`
	DeletedStudents        int            `gorm:"default:0" json:"deleted_students"`
	CreatedByUserID        uint           `gorm:"index;not null" json:"created_by_user_id"`
	StartedAt              *time.Time     `json:"started_at,omitempty"`
	CompletedAt            *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage           string         `gorm:"type:text" json:"error_message,omitempty"`

	// Relationships
	CreatedBy User            `gorm:"foreignKey:CreatedByUserID;constraint:OnDelete:CASCADE" json:"created_by,omitempty"`
	Groups    []MergeJobGroup `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"groups,omitempty"`
}

// MergeJobGroup tracks one duplicate group within a merge job.
type MergeJobGroup struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	JobID            uint                `gorm:"index;not null" json:"job_id"`
	GroupKey         string              `gorm:"type:varchar(255);not null" json:"group_key"` // name_school_grade
	Label            string              `gorm:"type:varchar(255)" json:"label"`              // human label, used in error strings
	PrimaryStudentID uint                `gorm:"not null" json:"primary_student_id"`
	SecondaryIDs     datatypes.JSON      `gorm:"type:jsonb" json:"secondary_ids"` // []uint, in processing order
	Status           MergeJobGroupStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Transferred      int                 `gorm:"default:0" json:"transferred"`
	Deleted          int                 `gorm:"default:0" json:"deleted"`
	ErrorMessage     string              `gorm:"type:text" json:"error_message,omitempty"`
	SnapshotKey      string              `gorm:"type:varchar(500)" json:"snapshot_key,omitempty"` // object-storage key of the pre-merge snapshot

	// Relationships
	Job MergeJob `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
}

// GetProgress returns the job progress percentage (0-100)
func (j *MergeJob) GetProgress() int {
	if j.TotalGroups == 0 {
		return 0
	}
	return (j.ProcessedGroups * 100) / j.TotalGroups
}

// IsComplete returns true if the job has reached a terminal status
func (j *MergeJob) IsComplete() bool {
	return j.Status == MergeJobStatusCompleted ||
		j.Status == MergeJobStatusFailed ||
		j.Status == MergeJobStatusPartial
}
