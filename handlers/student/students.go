package student

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/utils/middleware"
	"github.com/haneulsoft/hakwon-api/utils/response"
	"github.com/haneulsoft/hakwon-api/utils/validation"
)

// StudentHandler handles student-related requests
type StudentHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(db *gorm.DB) *StudentHandler {
	return &StudentHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateStudentRequest represents the request body for creating a student
type CreateStudentRequest struct {
	ExternalID   string `json:"external_id" validate:"omitempty,max=255"`
	Name         string `json:"name" validate:"required,min=1,max=100"`
	School       string `json:"school" validate:"omitempty,max=100"`
	Grade        string `json:"grade" validate:"omitempty,max=30"`
	Status       string `json:"status" validate:"omitempty,oneof=active on_hold withdrawn prospect"`
	EnglishName  string `json:"english_name" validate:"omitempty,max=100"`
	StudentPhone string `json:"student_phone" validate:"omitempty,max=30"`
	ParentName   string `json:"parent_name" validate:"omitempty,max=100"`
	ParentPhone  string `json:"parent_phone" validate:"omitempty,max=30"`
	BirthDate    string `json:"birth_date" validate:"omitempty,max=20"`
	Address      string `json:"address" validate:"omitempty,max=1000"`
	Memo         string `json:"memo" validate:"omitempty,max=5000"`
}

// UpdateStudentRequest represents the request body for updating a student
type UpdateStudentRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	School       *string `json:"school" validate:"omitempty,max=100"`
	Grade        *string `json:"grade" validate:"omitempty,max=30"`
	Status       *string `json:"status" validate:"omitempty,oneof=active on_hold withdrawn prospect"`
	EnglishName  *string `json:"english_name" validate:"omitempty,max=100"`
	StudentPhone *string `json:"student_phone" validate:"omitempty,max=30"`
	ParentName   *string `json:"parent_name" validate:"omitempty,max=100"`
	ParentPhone  *string `json:"parent_phone" validate:"omitempty,max=30"`
	BirthDate    *string `json:"birth_date" validate:"omitempty,max=20"`
	Address      *string `json:"address" validate:"omitempty,max=1000"`
	Memo         *string `json:"memo" validate:"omitempty,max=5000"`
	NotifySMS    *bool   `json:"notify_sms"`
	NotifyAttend *bool   `json:"notify_attend"`
}

// ListStudents handles GET /api/v1/students
func (h *StudentHandler) ListStudents(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	search := c.Query("search", "")
	status := c.Query("status", "")
	school := c.Query("school", "")
	grade := c.Query("grade", "")

	query := h.db.Model(&model.Student{})

	if search != "" {
		query = query.Where("name ILIKE ? OR external_id ILIKE ? OR parent_phone ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if school != "" {
		query = query.Where("school = ?", school)
	}
	if grade != "" {
		query = query.Where("grade = ?", grade)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count students")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var students []model.Student
	if err := query.Order("name ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&students).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch students")
	}

	return response.Paginated(c, students, pagination)
}

// GetStudent handles GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var student model.Student
	if err := h.db.Preload("Enrollments", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&student, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	return response.Success(c, student)
}

// CreateStudent handles POST /api/v1/students
func (h *StudentHandler) CreateStudent(c *fiber.Ctx) error {
	var req CreateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	userID, _ := middleware.GetUserID(c)

	student := model.Student{
		ExternalID:      req.ExternalID,
		Name:            req.Name,
		School:          req.School,
		Grade:           req.Grade,
		Status:          model.StudentStatusActive,
		EnglishName:     req.EnglishName,
		StudentPhone:    req.StudentPhone,
		ParentName:      req.ParentName,
		ParentPhone:     req.ParentPhone,
		BirthDate:       req.BirthDate,
		Address:         req.Address,
		Memo:            req.Memo,
		NotifySMS:       true,
		NotifyAttend:    true,
		CreatedByUserID: userID,
	}
	if req.Status != "" {
		student.Status = model.StudentStatus(req.Status)
	}

	// New records created in-app get a synthetic external ID so the unique
	// index holds; legacy imports carry their own.
	if student.ExternalID == "" {
		if err := h.db.Create(&student).Error; err != nil {
			return response.InternalServerError(c, "Failed to create student")
		}
		student.ExternalID = "app_" + strconv.FormatUint(uint64(student.ID), 10)
		if err := h.db.Model(&student).Update("external_id", student.ExternalID).Error; err != nil {
			return response.InternalServerError(c, "Failed to assign external ID")
		}
		return response.Created(c, student)
	}

	var existing model.Student
	if err := h.db.Where("external_id = ?", student.ExternalID).First(&existing).Error; err == nil {
		return response.BadRequest(c, "A student with this external ID already exists")
	}

	if err := h.db.Create(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to create student")
	}

	return response.Created(c, student)
}

// UpdateStudent handles PUT /api/v1/students/:id
func (h *StudentHandler) UpdateStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateStudentRequest
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

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.School != nil {
		updates["school"] = *req.School
	}
	if req.Grade != nil {
		updates["grade"] = *req.Grade
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.EnglishName != nil {
		updates["english_name"] = *req.EnglishName
	}
	if req.StudentPhone != nil {
		updates["student_phone"] = *req.StudentPhone
	}
	if req.ParentName != nil {
		updates["parent_name"] = *req.ParentName
	}
	if req.ParentPhone != nil {
		updates["parent_phone"] = *req.ParentPhone
	}
	if req.BirthDate != nil {
		updates["birth_date"] = *req.BirthDate
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Memo != nil {
		updates["memo"] = *req.Memo
	}
	if req.NotifySMS != nil {
		updates["notify_sms"] = *req.NotifySMS
	}
	if req.NotifyAttend != nil {
		updates["notify_attend"] = *req.NotifyAttend
	}

	if len(updates) == 0 {
		return response.Success(c, student)
	}

	if err := h.db.Model(&student).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update student")
	}

	if err := h.db.First(&student, student.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to load student details")
	}

	return response.Success(c, student)
}

// DeleteStudent handles DELETE /api/v1/students/:id
// This is a soft delete; merge jobs are the only path that hard-deletes.
func (h *StudentHandler) DeleteStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var student model.Student
	if err := h.db.First(&student, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	if err := h.db.Delete(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete student")
	}

	return response.Success(c, fiber.Map{
		"message": "Student deleted successfully",
	})
}
