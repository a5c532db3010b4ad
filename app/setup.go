package app

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/haneulsoft/hakwon-api/api"
	"github.com/haneulsoft/hakwon-api/config"
	"github.com/haneulsoft/hakwon-api/database"
	"github.com/haneulsoft/hakwon-api/router"
	"github.com/haneulsoft/hakwon-api/services"
	"github.com/haneulsoft/hakwon-api/services/cron"
	"github.com/haneulsoft/hakwon-api/utils/cache"
	"gorm.io/gorm"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err

	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		db, ok := store.GetDB().(*gorm.DB)
		if !ok {
			print("Warning: Failed to get database connection for cron jobs\n")
		} else {
			redisURL := getEnv.REDIS_URL
			if redisURL == "" {
				redisURL = "redis://localhost:6379/0"
			}
			redisCache, err := cache.NewRedisCache(redisURL)
			if err != nil {
				print("Warning: Redis unavailable for cron jobs, scan refresh will be skipped\n")
			}

			dedupService := services.NewDedupService(db, redisCache)
			mergeService := services.NewMergeService(services.NewGormStudentStore(db))
			notificationService := services.NewNotificationService(db)
			mergeJobService := services.NewMergeJobService(db, mergeService, notificationService, dedupService)

			cronManager = cron.NewCronManager(db, dedupService, mergeJobService, notificationService)
			if err := cronManager.Start(); err != nil {
				print("Warning: Failed to start cron jobs\n")
				print("Error: ", err.Error(), "\n")
				// Don't fail the app, just log the warning
			}
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	// Custom Logger
	app.Use(logger.New())

	app.Use(recover.New())

	// Setup Routes
	router.SetupRoutes(app, store)

	// Get the PORT & Start the Server
	return server.Run()

}
