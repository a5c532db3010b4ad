package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/haneulsoft/hakwon-api/database"
	"github.com/haneulsoft/hakwon-api/handlers"
	admin_handlers "github.com/haneulsoft/hakwon-api/handlers/admin"
	analytics_handlers "github.com/haneulsoft/hakwon-api/handlers/analytics"
	auth_handlers "github.com/haneulsoft/hakwon-api/handlers/auth"
	class_handlers "github.com/haneulsoft/hakwon-api/handlers/class"
	dedup_handlers "github.com/haneulsoft/hakwon-api/handlers/dedup"
	notification_handlers "github.com/haneulsoft/hakwon-api/handlers/notification"
	student_handlers "github.com/haneulsoft/hakwon-api/handlers/student"
	"github.com/haneulsoft/hakwon-api/services"
	"github.com/haneulsoft/hakwon-api/utils"
	"github.com/haneulsoft/hakwon-api/utils/auth"
	"github.com/haneulsoft/hakwon-api/utils/cache"
	"github.com/haneulsoft/hakwon-api/utils/middleware"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	// Get JWT secret from environment
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "hakwon-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Initialize Redis cache (brute force protection + duplicate scan state)
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection and scan caching will be degraded.", err)
	}

	// Initialize brute force protection
	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize auth handler with brute force protection
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)

	// Roster handlers
	studentHandler := student_handlers.NewStudentHandler(db)
	classHandler := class_handlers.NewClassHandler(db)

	// De-duplication pipeline: scan -> selection -> merge job
	dedupService := services.NewDedupService(db, redisCache)
	studentStore := services.NewGormStudentStore(db)
	mergeService := services.NewMergeService(studentStore)
	notificationService := services.NewNotificationService(db)
	mergeJobService := services.NewMergeJobService(db, mergeService, notificationService, dedupService)
	dedupHandler := dedup_handlers.NewDedupHandler(dedupService, mergeJobService)

	// Notifications
	notificationHandler := notification_handlers.NewNotificationHandler(notificationService)

	// Analytics
	analyticsService := services.NewAnalyticsService(db)
	analyticsHandler := analytics_handlers.NewAnalyticsHandler(db, analyticsService)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/forgot-password", authHandler.ForgotPassword)
	authGroup.Post("/reset-password", authHandler.ResetPassword)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// ==================== Student Roster ====================

	students := api.Group("/students", authMiddleware.Required())
	students.Get("/", studentHandler.ListStudents)
	students.Get("/:id", studentHandler.GetStudent)
	students.Post("/", studentHandler.CreateStudent)
	students.Put("/:id", studentHandler.UpdateStudent)
	students.Delete("/:id", authMiddleware.RequireAdmin(), studentHandler.DeleteStudent)

	// Enrollments (nested under students)
	students.Get("/:id/enrollments", studentHandler.ListEnrollments)
	students.Post("/:id/enrollments", studentHandler.CreateEnrollment)
	students.Post("/:id/enrollments/:enrollment_id/end", studentHandler.EndEnrollment)

	// ==================== Class Offerings ====================

	classes := api.Group("/classes", authMiddleware.Required())
	classes.Get("/", classHandler.ListClasses)
	classes.Get("/:id", classHandler.GetClass)
	classes.Post("/", authMiddleware.RequireAdmin(), classHandler.CreateClass)
	classes.Put("/:id", authMiddleware.RequireAdmin(), classHandler.UpdateClass)
	classes.Delete("/:id", authMiddleware.RequireAdmin(), classHandler.DeleteClass)

	// ==================== Notifications ====================

	notifications := api.Group("/notifications", authMiddleware.Required())
	notifications.Get("/", notificationHandler.GetNotifications)
	notifications.Get("/unread-count", notificationHandler.GetUnreadCount)
	notifications.Post("/:id/read", notificationHandler.MarkAsRead)
	notifications.Post("/read-all", notificationHandler.MarkAllAsRead)
	notifications.Delete("/:id", notificationHandler.DeleteNotification)
	notifications.Delete("/", notificationHandler.DeleteAllNotifications)

	// ==================== Analytics ====================

	analytics := api.Group("/analytics", authMiddleware.Required())
	analytics.Get("/subjects", analyticsHandler.GetSubjectHeadcounts)
	analytics.Get("/enrollments/timeseries", analyticsHandler.GetEnrollmentTimeSeries)
	analytics.Get("/activities", analyticsHandler.GetUserActivities)
	analytics.Post("/activity", analyticsHandler.LogActivity)

	// ==================== Admin Panel ====================

	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/dashboard", analyticsHandler.GetDashboard)

	// Duplicate detection and merge (admin only)
	dedup := admin.Group("/dedup")
	dedup.Get("/scan", dedupHandler.Scan)
	dedup.Post("/selection", dedupHandler.UpdateSelection)
	dedup.Post("/merge", middleware.AdminAuditLog(store, "merge_start", "merge_jobs"), dedupHandler.StartMerge)

	// Merge job monitoring
	admin.Get("/merge-jobs", dedupHandler.ListJobs)
	admin.Get("/merge-jobs/:id", dedupHandler.GetJob)
	admin.Get("/merge-jobs/:id/groups/:group_id/snapshot", dedupHandler.GetGroupSnapshot)
	admin.Post("/merge-jobs/:id/cancel", middleware.AdminAuditLog(store, "merge_cancel", "merge_jobs"), dedupHandler.CancelJob)

	// Admin User Management
	admin.Get("/users/stats", func(c *fiber.Ctx) error { return admin_handlers.GetUserStats(c, store) })
	admin.Get("/users", func(c *fiber.Ctx) error { return admin_handlers.ListUsers(c, store) })
	admin.Get("/users/:id", func(c *fiber.Ctx) error { return admin_handlers.GetUser(c, store) })
	admin.Put("/users/:id", middleware.AdminAuditLog(store, "user_update", "users"), func(c *fiber.Ctx) error { return admin_handlers.UpdateUser(c, store) })
	admin.Delete("/users/:id", middleware.AdminAuditLog(store, "user_delete", "users"), func(c *fiber.Ctx) error { return admin_handlers.DeleteUser(c, store) })
	admin.Post("/users/:id/reset-password", middleware.AdminAuditLog(store, "password_reset", "users"), func(c *fiber.Ctx) error { return admin_handlers.ResetUserPassword(c, store) })

	// Admin Analytics
	admin.Get("/analytics/overview", func(c *fiber.Ctx) error { return admin_handlers.GetOverviewAnalytics(c, store) })
	admin.Get("/analytics/students", func(c *fiber.Ctx) error { return admin_handlers.GetStudentAnalytics(c, store) })
	admin.Get("/analytics/enrollments", func(c *fiber.Ctx) error { return admin_handlers.GetEnrollmentAnalytics(c, store) })
	admin.Get("/analytics/merges", func(c *fiber.Ctx) error { return admin_handlers.GetMergeAnalytics(c, store) })

	// Admin Audit Logs
	admin.Get("/audit", func(c *fiber.Ctx) error { return admin_handlers.ListAuditLogs(c, store) })
	admin.Get("/audit/:id", func(c *fiber.Ctx) error { return admin_handlers.GetAuditLog(c, store) })

	// Admin Settings Management
	admin.Get("/settings", func(c *fiber.Ctx) error { return admin_handlers.ListSettings(c, store) })
	admin.Get("/settings/:key", func(c *fiber.Ctx) error { return admin_handlers.GetSetting(c, store) })
	admin.Put("/settings/:key", middleware.AdminAuditLog(store, "setting_update", "settings"), func(c *fiber.Ctx) error { return admin_handlers.UpdateSetting(c, store) })
	admin.Delete("/settings/:key", middleware.AdminAuditLog(store, "setting_delete", "settings"), func(c *fiber.Ctx) error { return admin_handlers.DeleteSetting(c, store) })
}
