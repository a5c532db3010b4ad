package student

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/utils/response"
)

// CreateEnrollmentRequest represents the request body for enrolling a student
type CreateEnrollmentRequest struct {
	Subject   string `json:"subject" validate:"required,min=1,max=50"`
	ClassName string `json:"class_name" validate:"required,min=1,max=100"`
	Teacher   string `json:"teacher" validate:"omitempty,max=100"`
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

// ListEnrollments handles GET /api/v1/students/:id/enrollments
func (h *StudentHandler) ListEnrollments(c *fiber.Ctx) error {
	id := c.Params("id")

	var student model.Student
	if err := h.db.First(&student, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	var enrollments []model.Enrollment
	if err := h.db.Where("student_id = ?", student.ID).
		Order("id ASC").
		Find(&enrollments).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch enrollments")
	}

	return response.Success(c, enrollments)
}

// CreateEnrollment handles POST /api/v1/students/:id/enrollments
func (h *StudentHandler) CreateEnrollment(c *fiber.Ctx) error {
	id := c.Params("id")

	var req CreateEnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var student model.Student
	if err := h.db.First(&student, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	// A student can hold at most one active enrollment per subject+class.
	var existing model.Enrollment
	if err := h.db.Where("student_id = ? AND subject = ? AND class_name = ? AND end_date IS NULL",
		student.ID, req.Subject, req.ClassName).First(&existing).Error; err == nil {
		return response.BadRequest(c, "Student already has an active enrollment in this class")
	}

	enrollment := model.Enrollment{
		StudentID: student.ID,
		Subject:   req.Subject,
		ClassName: req.ClassName,
		Teacher:   req.Teacher,
	}

	if req.StartDate != "" {
		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return response.BadRequest(c, "Invalid start date")
		}
		enrollment.StartDate = &startDate
	}

	if err := h.db.Create(&enrollment).Error; err != nil {
		return response.InternalServerError(c, "Failed to create enrollment")
	}

	return response.Created(c, enrollment)
}

// EndEnrollment handles POST /api/v1/students/:id/enrollments/:enrollment_id/end
// Enrollments are never deleted; ending one sets its end date so class
// history survives.
func (h *StudentHandler) EndEnrollment(c *fiber.Ctx) error {
	id := c.Params("id")
	enrollmentID := c.Params("enrollment_id")

	var enrollment model.Enrollment
	if err := h.db.Where("id = ? AND student_id = ?", enrollmentID, id).
		First(&enrollment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Enrollment not found")
		}
		return response.InternalServerError(c, "Failed to fetch enrollment")
	}

	if !enrollment.IsActive() {
		return response.BadRequest(c, "Enrollment is already ended")
	}

	now := time.Now()
	if err := h.db.Model(&enrollment).Update("end_date", &now).Error; err != nil {
		return response.InternalServerError(c, "Failed to end enrollment")
	}

	enrollment.EndDate = &now
	return response.Success(c, enrollment)
}
