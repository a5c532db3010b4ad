package services

import (
	"context"
	"fmt"

	"github.com/haneulsoft/hakwon-api/model"
	"gorm.io/gorm"
)

// MaxBatchOps is the largest number of operations allowed in one atomic
// batch write. Keeps merge transactions short under row-lock contention;
// the merge executor chunks anything larger.
const MaxBatchOps = 500

// BatchOpKind identifies a batched write operation.
type BatchOpKind string

const (
	BatchOpCreateEnrollment BatchOpKind = "create_enrollment"
	BatchOpDeleteEnrollment BatchOpKind = "delete_enrollment"
)

// BatchOp is one operation inside an atomic batch write.
type BatchOp struct {
	Kind     BatchOpKind
	Create   *model.Enrollment // set for BatchOpCreateEnrollment
	DeleteID uint              // set for BatchOpDeleteEnrollment
}

// StudentStore is the narrow persistence surface the merge executor depends
// on. Production uses the GORM implementation below; tests substitute an
// in-memory fake.
type StudentStore interface {
	GetStudent(ctx context.Context, id uint) (*model.Student, error)
	ListEnrollments(ctx context.Context, studentID uint) ([]model.Enrollment, error)
	// ApplyBatch applies up to MaxBatchOps operations atomically.
	ApplyBatch(ctx context.Context, ops []BatchOp) error
	// DeleteStudent hard-deletes a student record. Unrecoverable.
	DeleteStudent(ctx context.Context, id uint) error
	// PatchStudent merges the given fields into the record without touching
	// unspecified fields.
	PatchStudent(ctx context.Context, id uint, fields map[string]interface{}) error
}

// GormStudentStore implements StudentStore on top of GORM/PostgreSQL.
type GormStudentStore struct {
	db *gorm.DB
}

// NewGormStudentStore creates a GORM-backed student store.
func NewGormStudentStore(db *gorm.DB) *GormStudentStore {
	return &GormStudentStore{db: db}
}

// GetStudent loads a student by ID.
func (s *GormStudentStore) GetStudent(ctx context.Context, id uint) (*model.Student, error) {
	var student model.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("student %d not found", id)
		}
		return nil, fmt.Errorf("failed to fetch student %d: %w", id, err)
	}
	return &student, nil
}

// ListEnrollments returns all enrollments of a student, oldest first.
func (s *GormStudentStore) ListEnrollments(ctx context.Context, studentID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id ASC").
		Find(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to list enrollments of student %d: %w", studentID, err)
	}
	return enrollments, nil
}

// ApplyBatch runs all operations inside one transaction.
func (s *GormStudentStore) ApplyBatch(ctx context.Context, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxBatchOps {
		return fmt.Errorf("batch of %d operations exceeds the %d-op limit", len(ops), MaxBatchOps)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			switch op.Kind {
			case BatchOpCreateEnrollment:
				if err := tx.Create(op.Create).Error; err != nil {
					return fmt.Errorf("failed to create enrollment: %w", err)
				}
			case BatchOpDeleteEnrollment:
				if err := tx.Delete(&model.Enrollment{}, op.DeleteID).Error; err != nil {
					return fmt.Errorf("failed to delete enrollment %d: %w", op.DeleteID, err)
				}
			default:
				return fmt.Errorf("unknown batch op kind %q", op.Kind)
			}
		}
		return nil
	})
}

// DeleteStudent hard-deletes the student row (bypasses gorm soft delete).
func (s *GormStudentStore) DeleteStudent(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Unscoped().Delete(&model.Student{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete student %d: %w", id, result.Error)
	}
	return nil
}

// PatchStudent merges the given column values into the student row.
func (s *GormStudentStore) PatchStudent(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&model.Student{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to patch student %d: %w", id, result.Error)
	}
	return nil
}
