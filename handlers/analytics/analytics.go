package analytics

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/services"
	"github.com/haneulsoft/hakwon-api/utils/middleware"
	"github.com/haneulsoft/hakwon-api/utils/response"
	"gorm.io/gorm"
)

// AnalyticsHandler handles analytics and reporting requests
type AnalyticsHandler struct {
	db               *gorm.DB
	analyticsService *services.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(db *gorm.DB, analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		db:               db,
		analyticsService: analyticsService,
	}
}

// GetDashboard handles GET /api/v1/admin/dashboard
func (h *AnalyticsHandler) GetDashboard(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	if user.Role != model.UserRoleAdmin {
		return response.Forbidden(c, "Admin access required")
	}

	stats, err := h.analyticsService.GetDashboardStats(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch dashboard stats: "+err.Error())
	}

	return response.Success(c, stats)
}

// GetSubjectHeadcounts handles GET /api/v1/analytics/subjects
func (h *AnalyticsHandler) GetSubjectHeadcounts(c *fiber.Ctx) error {
	headcounts, err := h.analyticsService.GetSubjectHeadcounts(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch subject headcounts: "+err.Error())
	}

	return response.Success(c, fiber.Map{
		"subjects": headcounts,
	})
}

// GetEnrollmentTimeSeries handles GET /api/v1/analytics/enrollments/timeseries
func (h *AnalyticsHandler) GetEnrollmentTimeSeries(c *fiber.Ctx) error {
	days, _ := strconv.Atoi(c.Query("days", "30"))

	series, err := h.analyticsService.GetEnrollmentTimeSeries(c.Context(), days)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch enrollment time series: "+err.Error())
	}

	return response.Success(c, fiber.Map{
		"days":   days,
		"series": series,
	})
}

// GetUserActivities handles GET /api/v1/analytics/activities
//
// Staff see their own activity trail; admins may pass user_id to inspect
// another account.
func (h *AnalyticsHandler) GetUserActivities(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	targetID := user.ID
	if idStr := c.Query("user_id"); idStr != "" {
		if user.Role != model.UserRoleAdmin {
			return response.Forbidden(c, "Admin access required to view other users' activities")
		}
		parsed, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid user_id")
		}
		targetID = uint(parsed)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.Model(&model.UserActivity{}).Where("user_id = ?", targetID)
	if activityType := c.Query("type"); activityType != "" {
		query = query.Where("activity_type = ?", activityType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count activities")
	}

	var activities []model.UserActivity
	offset := (page - 1) * limit
	if err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&activities).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch activities")
	}

	return response.Success(c, fiber.Map{
		"activities": activities,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// LogActivityRequest represents a manual activity log entry
type LogActivityRequest struct {
	ActivityType string `json:"activity_type" validate:"required"`
	ResourceType string `json:"resource_type"`
	ResourceID   uint   `json:"resource_id"`
}

// LogActivity handles POST /api/v1/analytics/activity
func (h *AnalyticsHandler) LogActivity(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req LogActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ActivityType == "" {
		return response.BadRequest(c, "activity_type is required")
	}

	err := h.analyticsService.LogActivity(
		c.Context(),
		user.ID,
		model.ActivityType(req.ActivityType),
		req.ResourceType,
		req.ResourceID,
		c.IP(),
		c.Get("User-Agent"),
	)
	if err != nil {
		return response.InternalServerError(c, "Failed to log activity: "+err.Error())
	}

	return response.Created(c, fiber.Map{"logged": true})
}
