package admin

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/haneulsoft/hakwon-api/database"
	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/services"
	"github.com/haneulsoft/hakwon-api/utils/response"
	"gorm.io/gorm"
)

// GetOverviewAnalytics retrieves academy-wide overview statistics
// GET /admin/analytics/overview
func GetOverviewAnalytics(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	analyticsService := services.NewAnalyticsService(db)
	stats, err := analyticsService.GetDashboardStats(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to compute overview statistics")
	}

	return response.SuccessWithMessage(c, "Overview analytics retrieved successfully", stats)
}

// GetStudentAnalytics retrieves student and enrollment analytics
// GET /admin/analytics/students
func GetStudentAnalytics(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	var analytics struct {
		TotalStudents    int64
		StudentsByStatus []struct {
			Status string
			Count  int64
		}
		StudentsBySchool []struct {
			School string
			Count  int64
		}
		StudentGrowth []struct {
			Date  string
			Count int64
		}
		SubjectHeadcounts []services.SubjectHeadcount
	}

	db.Model(&model.Student{}).Count(&analytics.TotalStudents)

	// Students by status
	db.Model(&model.Student{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&analytics.StudentsByStatus)

	// Largest schools first
	db.Model(&model.Student{}).
		Select("school, COUNT(*) as count").
		Where("school != ''").
		Group("school").
		Order("count DESC").
		Limit(10).
		Scan(&analytics.StudentsBySchool)

	// New students (last 30 days)
	db.Raw(`
		SELECT DATE(created_at) as date, COUNT(*) as count
		FROM students
		WHERE created_at >= NOW() - INTERVAL '30 days'
		AND deleted_at IS NULL
		GROUP BY DATE(created_at)
		ORDER BY date ASC
	`).Scan(&analytics.StudentGrowth)

	analyticsService := services.NewAnalyticsService(db)
	headcounts, err := analyticsService.GetSubjectHeadcounts(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to aggregate subject headcounts")
	}
	analytics.SubjectHeadcounts = headcounts

	return response.SuccessWithMessage(c, "Student analytics retrieved successfully", analytics)
}

// GetEnrollmentAnalytics retrieves enrollment trend analytics
// GET /admin/analytics/enrollments
func GetEnrollmentAnalytics(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	days, _ := strconv.Atoi(c.Query("days", "30"))

	analyticsService := services.NewAnalyticsService(db)
	series, err := analyticsService.GetEnrollmentTimeSeries(c.Context(), days)
	if err != nil {
		return response.InternalServerError(c, "Failed to build enrollment time series")
	}

	var analytics struct {
		ActiveEnrollments int64
		EndedThisMonth    int64
		NewEnrollments    []services.TimeSeriesPoint
	}

	db.Model(&model.Enrollment{}).
		Where("end_date IS NULL").
		Count(&analytics.ActiveEnrollments)

	monthStart := time.Now().AddDate(0, 0, -30)
	db.Model(&model.Enrollment{}).
		Where("end_date >= ?", monthStart).
		Count(&analytics.EndedThisMonth)

	analytics.NewEnrollments = series

	return response.SuccessWithMessage(c, "Enrollment analytics retrieved successfully", analytics)
}

// GetMergeAnalytics retrieves duplicate-merge history analytics
// GET /admin/analytics/merges
func GetMergeAnalytics(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	var analytics struct {
		TotalJobs    int64
		JobsByStatus []struct {
			Status string
			Count  int64
		}
		TotalRecordsRemoved         int64
		TotalEnrollmentsTransferred int64
		RecentJobs                  []model.MergeJob
	}

	db.Model(&model.MergeJob{}).Count(&analytics.TotalJobs)

	db.Model(&model.MergeJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&analytics.JobsByStatus)

	var totals struct {
		Deleted     int64
		Transferred int64
	}
	db.Model(&model.MergeJob{}).
		Select("COALESCE(SUM(deleted_students), 0) as deleted, COALESCE(SUM(transferred_enrollments), 0) as transferred").
		Scan(&totals)
	analytics.TotalRecordsRemoved = totals.Deleted
	analytics.TotalEnrollmentsTransferred = totals.Transferred

	db.Order("created_at DESC").Limit(10).Find(&analytics.RecentJobs)

	return response.SuccessWithMessage(c, "Merge analytics retrieved successfully", analytics)
}
