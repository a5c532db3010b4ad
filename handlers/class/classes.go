package class

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/utils/response"
	"github.com/haneulsoft/hakwon-api/utils/validation"
)

// ClassHandler handles class offering requests
type ClassHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewClassHandler creates a new class handler
func NewClassHandler(db *gorm.DB) *ClassHandler {
	return &ClassHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateClassRequest represents the request body for creating a class
type CreateClassRequest struct {
	Subject  string `json:"subject" validate:"required,min=1,max=50"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Teacher  string `json:"teacher" validate:"omitempty,max=100"`
	Schedule string `json:"schedule" validate:"omitempty,max=255"`
	Capacity int    `json:"capacity" validate:"omitempty,min=0,max=500"`
}

// UpdateClassRequest represents the request body for updating a class
type UpdateClassRequest struct {
	Teacher  *string `json:"teacher" validate:"omitempty,max=100"`
	Schedule *string `json:"schedule" validate:"omitempty,max=255"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=0,max=500"`
}

// ListClasses handles GET /api/v1/classes
func (h *ClassHandler) ListClasses(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	subject := c.Query("subject", "")

	query := h.db.Model(&model.ClassOffering{})
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count classes")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var classes []model.ClassOffering
	if err := query.Order("subject ASC, name ASC").
		Limit(limit).
		Offset(offset).
		Find(&classes).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch classes")
	}

	return response.Paginated(c, classes, pagination)
}

// GetClass handles GET /api/v1/classes/:id
func (h *ClassHandler) GetClass(c *fiber.Ctx) error {
	id := c.Params("id")

	var class model.ClassOffering
	if err := h.db.First(&class, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Class not found")
		}
		return response.InternalServerError(c, "Failed to fetch class")
	}

	// Current headcount: active enrollments carrying this subject+class.
	var enrolled int64
	h.db.Model(&model.Enrollment{}).
		Where("subject = ? AND class_name = ? AND end_date IS NULL", class.Subject, class.Name).
		Count(&enrolled)

	return response.Success(c, fiber.Map{
		"class":    class,
		"enrolled": enrolled,
	})
}

// CreateClass handles POST /api/v1/classes
func (h *ClassHandler) CreateClass(c *fiber.Ctx) error {
	var req CreateClassRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var existing model.ClassOffering
	if err := h.db.Where("subject = ? AND name = ?", req.Subject, req.Name).
		First(&existing).Error; err == nil {
		return response.BadRequest(c, "A class with this subject and name already exists")
	}

	class := model.ClassOffering{
		Subject:  req.Subject,
		Name:     req.Name,
		Teacher:  req.Teacher,
		Schedule: req.Schedule,
		Capacity: req.Capacity,
	}

	if err := h.db.Create(&class).Error; err != nil {
		return response.InternalServerError(c, "Failed to create class")
	}

	return response.Created(c, class)
}

// UpdateClass handles PUT /api/v1/classes/:id
func (h *ClassHandler) UpdateClass(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateClassRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var class model.ClassOffering
	if err := h.db.First(&class, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Class not found")
		}
		return response.InternalServerError(c, "Failed to fetch class")
	}

	updates := map[string]interface{}{}
	if req.Teacher != nil {
		updates["teacher"] = *req.Teacher
	}
	if req.Schedule != nil {
		updates["schedule"] = *req.Schedule
	}
	if req.Capacity != nil {
		updates["capacity"] = *req.Capacity
	}

	if len(updates) > 0 {
		if err := h.db.Model(&class).Updates(updates).Error; err != nil {
			return response.InternalServerError(c, "Failed to update class")
		}
	}

	if err := h.db.First(&class, class.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to load class details")
	}

	return response.Success(c, class)
}

// DeleteClass handles DELETE /api/v1/classes/:id
func (h *ClassHandler) DeleteClass(c *fiber.Ctx) error {
	id := c.Params("id")

	var class model.ClassOffering
	if err := h.db.First(&class, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Class not found")
		}
		return response.InternalServerError(c, "Failed to fetch class")
	}

	var enrolled int64
	h.db.Model(&model.Enrollment{}).
		Where("subject = ? AND class_name = ? AND end_date IS NULL", class.Subject, class.Name).
		Count(&enrolled)
	if enrolled > 0 {
		return response.BadRequest(c, "Class still has active enrollments")
	}

	if err := h.db.Delete(&class).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete class")
	}

	return response.Success(c, fiber.Map{
		"message": "Class deleted successfully",
	})
}
