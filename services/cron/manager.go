package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/services"
)

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron                *cron.Cron
	db                  *gorm.DB
	dedupService        *services.DedupService
	mergeJobService     *services.MergeJobService
	notificationService *services.NotificationService
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, dedupService *services.DedupService, mergeJobService *services.MergeJobService, notificationService *services.NotificationService) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:                c,
		db:                  db,
		dedupService:        dedupService,
		mergeJobService:     mergeJobService,
		notificationService: notificationService,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every 10 minutes: fail merge jobs that stalled mid-run
	_, err := m.cron.AddFunc("0 */10 * * * *", func() {
		m.logJobStart("watchdog_stuck_merge_jobs")
		m.FailStuckMergeJobs()
	})
	if err != nil {
		return err
	}

	// 2. Every hour: purge expired token blacklist entries
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("cleanup_token_blacklist")
		m.CleanupTokenBlacklist()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 2 AM: cleanup old merge jobs, notifications and cron logs
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("cleanup_old_data")
		m.CleanupOldData()
	})
	if err != nil {
		return err
	}

	// 4. Daily at 3 AM: refresh the duplicate scan against the current table
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("refresh_duplicate_scan")
		m.RefreshDuplicateScan()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
		Metadata:  "{}",
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "completed",
			"completed_at": time.Now(),
			"message":      message,
		})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
