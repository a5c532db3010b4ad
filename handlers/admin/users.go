package admin

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/haneulsoft/hakwon-api/database"
	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/utils/auth"
	"github.com/haneulsoft/hakwon-api/utils/response"
	"gorm.io/gorm"
)

// ListUsersRequest represents the query parameters for listing staff accounts
type ListUsersRequest struct {
	Page    int    `query:"page"`
	Limit   int    `query:"limit"`
	Role    string `query:"role"`
	Search  string `query:"search"`
	Sort    string `query:"sort"`
	SortDir string `query:"sort_dir"`
}

// UpdateUserRequest represents the request body for updating a staff account
type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Phone string `json:"phone"`
}

// ResetPasswordRequest represents the request for admin password reset
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func isValidRole(role string) bool {
	switch role {
	case model.UserRoleAdmin, model.UserRoleTeacher, model.UserRoleDesk:
		return true
	}
	return false
}

// ListUsers retrieves all staff accounts with pagination and filters
// GET /admin/users
func ListUsers(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	var req ListUsersRequest
	if err := c.QueryParser(&req); err != nil {
		return response.BadRequest(c, "Invalid query parameters")
	}

	// Default pagination
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}
	switch req.Sort {
	case "name", "email", "role", "created_at":
	default:
		req.Sort = "created_at"
	}
	if req.SortDir != "asc" && req.SortDir != "desc" {
		req.SortDir = "desc"
	}

	query := db.Model(&model.User{})

	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}

	// Search by name or email
	if req.Search != "" {
		searchTerm := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count users")
	}

	var users []model.User
	offset := (req.Page - 1) * req.Limit
	orderBy := req.Sort + " " + req.SortDir

	if err := query.Offset(offset).Limit(req.Limit).Order(orderBy).Find(&users).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch users")
	}

	return response.SuccessWithMessage(c, "Users retrieved successfully", fiber.Map{
		"users": users,
		"pagination": fiber.Map{
			"page":        req.Page,
			"limit":       req.Limit,
			"total":       total,
			"total_pages": (total + int64(req.Limit) - 1) / int64(req.Limit),
		},
	})
}

// GetUser retrieves a specific staff account by ID
// GET /admin/users/:id
func GetUser(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	// Per-account work statistics
	var stats struct {
		StudentsRegistered int64 `json:"students_registered"`
		MergeJobsRun       int64 `json:"merge_jobs_run"`
		RecordsMergedAway  int64 `json:"records_merged_away"`
		ActivitiesThisWeek int64 `json:"activities_this_week"`
	}

	db.Model(&model.Student{}).Where("created_by_user_id = ?", userID).Count(&stats.StudentsRegistered)
	db.Model(&model.MergeJob{}).Where("created_by_user_id = ?", userID).Count(&stats.MergeJobsRun)
	db.Model(&model.MergeJob{}).
		Where("created_by_user_id = ?", userID).
		Select("COALESCE(SUM(total_deleted), 0)").
		Scan(&stats.RecordsMergedAway)
	db.Model(&model.UserActivity{}).
		Where("user_id = ? AND created_at >= NOW() - INTERVAL '7 days'", userID).
		Count(&stats.ActivitiesThisWeek)

	return response.SuccessWithMessage(c, "User retrieved successfully", fiber.Map{
		"user":  user,
		"stats": stats,
	})
}

// UpdateUser updates a staff account's information
// PUT /admin/users/:id
func UpdateUser(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	updates := make(map[string]interface{})

	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		// Check if email is already taken by another user
		var existingUser model.User
		if err := db.Where("email = ? AND id != ?", req.Email, userID).First(&existingUser).Error; err == nil {
			return response.BadRequest(c, "Email already in use")
		}
		updates["email"] = req.Email
	}
	if req.Role != "" {
		if !isValidRole(req.Role) {
			return response.BadRequest(c, "Invalid role")
		}
		updates["role"] = req.Role
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}

	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return response.InternalServerError(c, "Failed to update user")
		}
	}

	db.First(&user, userID)

	return response.SuccessWithMessage(c, "User updated successfully", fiber.Map{
		"user": user,
	})
}

// DeleteUser soft deletes a staff account
// DELETE /admin/users/:id
func DeleteUser(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	// Prevent self-deletion
	adminUser, ok := c.Locals("adminUser").(model.User)
	if ok && adminUser.ID == uint(userID) {
		return response.BadRequest(c, "Cannot delete your own account")
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	if err := db.Delete(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete user")
	}

	return response.SuccessWithMessage(c, "User deleted successfully", fiber.Map{
		"user_id": userID,
	})
}

// ResetUserPassword allows admin to reset a staff account's password
// POST /admin/users/:id/reset-password
func ResetUserPassword(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if len(req.NewPassword) < 8 {
		return response.BadRequest(c, "Password must be at least 8 characters")
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	hashedPassword, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return response.InternalServerError(c, "Failed to hash password")
	}

	// Update password and increment token version (invalidate all tokens)
	if err := db.Model(&user).Updates(map[string]interface{}{
		"password_hash": hashedPassword,
		"token_version": user.TokenVersion + 1,
	}).Error; err != nil {
		return response.InternalServerError(c, "Failed to update password")
	}

	return response.SuccessWithMessage(c, "Password reset successfully", fiber.Map{
		"user_id": userID,
		"message": "All user sessions have been invalidated",
	})
}

// GetUserStats retrieves overall staff account statistics
// GET /admin/users/stats
func GetUserStats(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	var stats struct {
		TotalUsers     int64 `json:"total_users"`
		AdminUsers     int64 `json:"admin_users"`
		TeacherUsers   int64 `json:"teacher_users"`
		DeskUsers      int64 `json:"desk_users"`
		ActiveToday    int64 `json:"active_today"`
		ActiveThisWeek int64 `json:"active_this_week"`
	}

	db.Model(&model.User{}).Count(&stats.TotalUsers)

	db.Model(&model.User{}).Where("role = ?", model.UserRoleAdmin).Count(&stats.AdminUsers)
	db.Model(&model.User{}).Where("role = ?", model.UserRoleTeacher).Count(&stats.TeacherUsers)
	db.Model(&model.User{}).Where("role = ?", model.UserRoleDesk).Count(&stats.DeskUsers)

	// Active users (based on user_activity)
	db.Model(&model.UserActivity{}).
		Where("created_at >= NOW() - INTERVAL '1 day'").
		Distinct("user_id").
		Count(&stats.ActiveToday)

	db.Model(&model.UserActivity{}).
		Where("created_at >= NOW() - INTERVAL '7 days'").
		Distinct("user_id").
		Count(&stats.ActiveThisWeek)

	return response.SuccessWithMessage(c, "User statistics retrieved successfully", stats)
}
