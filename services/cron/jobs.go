package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

// Retention windows for the daily cleanup.
const (
	mergeJobRetention     = 90 * 24 * time.Hour
	notificationRetention = 30 * 24 * time.Hour
	cronLogRetention      = 14 * 24 * time.Hour
)

// RefreshDuplicateScan reruns the duplicate scan so the admin opens a result
// computed against last night's table instead of a stale cache.
// Runs daily at 3 AM.
func (m *CronManager) RefreshDuplicateScan() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "refresh_duplicate_scan"

	state, err := m.dedupService.Scan(ctx, true)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("scan failed: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Scanned %d students: %d duplicate groups",
		state.TotalStudents, len(state.Selection.Groups)))
}

// FailStuckMergeJobs fails merge jobs whose goroutine died mid-run, e.g.
// after a crash or deploy. Runs every 10 minutes.
func (m *CronManager) FailStuckMergeJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jobName := "watchdog_stuck_merge_jobs"

	failed, err := m.mergeJobService.FailStuckJobs(ctx)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	if failed == 0 {
		m.logJobComplete(jobName, "No stuck jobs")
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Failed %d stuck merge jobs", failed))
}

// CleanupTokenBlacklist purges blacklist entries whose tokens have expired
// anyway. Runs hourly.
func (m *CronManager) CleanupTokenBlacklist() {
	jobName := "cleanup_token_blacklist"

	result := m.db.Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&model.JWTTokenBlacklist{})

	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to purge blacklist: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Purged %d expired blacklist entries", result.RowsAffected))
}

// CleanupOldData removes old merge jobs, read notifications and cron logs.
// Runs daily at 2 AM.
func (m *CronManager) CleanupOldData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_old_data"

	jobs, err := m.mergeJobService.CleanupOldJobs(ctx, mergeJobRetention)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	notifications, err := m.notificationService.CleanupOldNotifications(ctx, notificationRetention)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	logResult := m.db.Where("started_at < ?", time.Now().Add(-cronLogRetention)).
		Delete(&model.CronJobLog{})
	if logResult.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to purge cron logs: %w", logResult.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Removed %d merge jobs, %d notifications, %d cron logs",
		jobs, notifications, logResult.RowsAffected))
}
