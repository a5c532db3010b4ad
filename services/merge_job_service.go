package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/services/spaces"
)

// mergeJobTimeout bounds one batch merge run.
const mergeJobTimeout = 30 * time.Minute

// snapshotURLExpiry is how long a presigned snapshot download link stays valid.
const snapshotURLExpiry = 15 * time.Minute

// ErrSnapshotUnavailable means a group has no pre-merge snapshot: storage was
// not configured when the job ran, or the upload failed and was skipped.
var ErrSnapshotUnavailable = errors.New("no snapshot available for this group")

// MergeJobService orchestrates batch merge jobs: it creates the job and its
// group rows, processes the groups strictly one at a time in a background
// goroutine, and keeps progress visible through job counters and the user's
// notification. A failed group is recorded and skipped; it never aborts the
// rest of the batch.
type MergeJobService struct {
	db                  *gorm.DB
	mergeService        *MergeService
	notificationService *NotificationService
	dedupService        *DedupService

	spacesClient    *spaces.Client
	enableSnapshots bool

	// Active jobs tracking
	activeJobs   map[uint]context.CancelFunc
	activeJobsMu sync.RWMutex
}

// NewMergeJobService creates a new merge job service
func NewMergeJobService(db *gorm.DB, mergeService *MergeService, notificationService *NotificationService, dedupService *DedupService) *MergeJobService {
	service := &MergeJobService{
		db:                  db,
		mergeService:        mergeService,
		notificationService: notificationService,
		dedupService:        dedupService,
		activeJobs:          make(map[uint]context.CancelFunc),
	}

	spacesClient, err := spaces.NewClientFromEnv()
	if err != nil {
		log.Printf("Warning: Spaces not configured, pre-merge snapshots disabled: %v", err)
	} else {
		service.spacesClient = spacesClient
		service.enableSnapshots = true
	}

	return service
}

// StartMergeRequest represents a request to merge the selected groups
type StartMergeRequest struct {
	UserID        uint
	ConfirmGroups int // must match the number of selected groups
}

// StartMergeResult represents the result of starting a merge job
type StartMergeResult struct {
	JobID       uint   `json:"job_id"`
	Status      string `json:"status"`
	TotalGroups int    `json:"total_groups"`
	Message     string `json:"message"`
}

// StartMerge validates the current selection, creates the job and its group
// rows, and kicks off background processing. All validation happens before
// any write.
func (s *MergeJobService) StartMerge(ctx context.Context, req StartMergeRequest) (*StartMergeResult, error) {
	plans, _, err := s.dedupService.SelectedPlans(ctx)
	if err != nil {
		return nil, err
	}

	if req.ConfirmGroups != len(plans) {
		return nil, fmt.Errorf("confirmation mismatch: %d groups selected but %d confirmed", len(plans), req.ConfirmGroups)
	}

	for _, plan := range plans {
		if plan.PrimaryID == 0 {
			return nil, fmt.Errorf("group %q has no primary record", plan.Label)
		}
		if len(plan.SecondaryIDs) == 0 {
			return nil, fmt.Errorf("group %q has no secondary records", plan.Label)
		}
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	now := time.Now()
	job := &model.MergeJob{
		Status:          model.MergeJobStatusPending,
		TotalGroups:     len(plans),
		CreatedByUserID: req.UserID,
		StartedAt:       &now,
	}

	if err := tx.Create(job).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create merge job: %w", err)
	}

	for _, plan := range plans {
		secondaryJSON, _ := json.Marshal(plan.SecondaryIDs)
		group := &model.MergeJobGroup{
			JobID:            job.ID,
			GroupKey:         plan.GroupKey,
			Label:            plan.Label,
			PrimaryStudentID: plan.PrimaryID,
			SecondaryIDs:     datatypes.JSON(secondaryJSON),
			Status:           model.MergeJobGroupStatusPending,
		}
		if err := tx.Create(group).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to create job group: %w", err)
		}
	}

	job.Status = model.MergeJobStatusProcessing
	if err := tx.Save(job).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	_, err = s.notificationService.CreateInProgressNotification(
		ctx,
		req.UserID,
		job.ID,
		model.NotificationCategoryStudentMerge,
		fmt.Sprintf("Merging %d duplicate groups", len(plans)),
		"Merge started...",
		&model.NotificationMetadata{
			TotalGroups: len(plans),
			Progress:    0,
		},
	)
	if err != nil {
		log.Printf("Warning: Failed to create notification for job %d: %v", job.ID, err)
	}

	go s.processJob(job.ID, req.UserID)

	log.Printf("========================================")
	log.Printf("[MERGE-JOB] JOB %d CREATED", job.ID)
	log.Printf("[MERGE-JOB] User: %d", req.UserID)
	log.Printf("[MERGE-JOB] Total Groups: %d", len(plans))
	log.Printf("========================================")

	return &StartMergeResult{
		JobID:       job.ID,
		Status:      string(model.MergeJobStatusProcessing),
		TotalGroups: len(plans),
		Message:     fmt.Sprintf("Merge started with %d groups", len(plans)),
	}, nil
}

// processJob handles the background processing of a merge job
func (s *MergeJobService) processJob(jobID uint, userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), mergeJobTimeout)
	defer cancel()

	s.activeJobsMu.Lock()
	s.activeJobs[jobID] = cancel
	s.activeJobsMu.Unlock()

	defer func() {
		s.activeJobsMu.Lock()
		delete(s.activeJobs, jobID)
		s.activeJobsMu.Unlock()
	}()

	log.Printf("[MERGE-JOB] GOROUTINE STARTED for job %d", jobID)

	var groups []model.MergeJobGroup
	if err := s.db.Where("job_id = ?", jobID).Order("id ASC").Find(&groups).Error; err != nil {
		log.Printf("Error fetching job groups: %v", err)
		s.failJob(ctx, jobID, "Failed to fetch job groups")
		return
	}

	processed := 0
	failed := 0
	transferred := 0
	deleted := 0
	var errorLines []string

	for i, group := range groups {
		select {
		case <-ctx.Done():
			log.Printf("[MERGE-JOB] Job %d cancelled or timed out", jobID)
			s.failJob(ctx, jobID, "Job cancelled or timed out")
			return
		default:
		}

		log.Printf("[MERGE-JOB] Processing group %d/%d for job %d (%s)", i+1, len(groups), jobID, group.Label)
		s.updateGroup(group.ID, map[string]interface{}{"status": model.MergeJobGroupStatusProcessing})

		var secondaryIDs []uint
		if err := json.Unmarshal(group.SecondaryIDs, &secondaryIDs); err != nil {
			failed++
			errorLines = append(errorLines, fmt.Sprintf("%s: invalid secondary list", group.Label))
			s.updateGroup(group.ID, map[string]interface{}{
				"status":        model.MergeJobGroupStatusFailed,
				"error_message": "invalid secondary list",
			})
			s.updateJobProgress(jobID, processed, failed, transferred, deleted)
			continue
		}

		if key := s.snapshotGroup(ctx, jobID, group, secondaryIDs); key != "" {
			s.updateGroup(group.ID, map[string]interface{}{"snapshot_key": key})
		}

		result := s.mergeService.MergeGroup(ctx, GroupPlan{
			Label:        group.Label,
			GroupKey:     group.GroupKey,
			PrimaryID:    group.PrimaryStudentID,
			SecondaryIDs: secondaryIDs,
		})

		transferred += result.Transferred
		deleted += result.Deleted

		groupUpdates := map[string]interface{}{
			"transferred": result.Transferred,
			"deleted":     result.Deleted,
		}
		if result.Err != nil {
			failed++
			errorLines = append(errorLines, fmt.Sprintf("%s: %v", group.Label, result.Err))
			groupUpdates["status"] = model.MergeJobGroupStatusFailed
			groupUpdates["error_message"] = result.Err.Error()
			log.Printf("[MERGE-JOB] Group %q failed: %v", group.Label, result.Err)
		} else {
			processed++
			groupUpdates["status"] = model.MergeJobGroupStatusCompleted
		}
		s.updateGroup(group.ID, groupUpdates)
		s.updateJobProgress(jobID, processed, failed, transferred, deleted)

		progress := ((processed + failed) * 100) / len(groups)
		s.notificationService.UpdateNotificationForJob(ctx, jobID, model.NotificationTypeInProgress,
			fmt.Sprintf("Merging duplicate groups (%d/%d)", processed+failed, len(groups)),
			fmt.Sprintf("Merged %q...", group.Label),
			&model.NotificationMetadata{
				TotalGroups:            len(groups),
				ProcessedGroups:        processed,
				FailedGroups:           failed,
				TransferredEnrollments: transferred,
				DeletedStudents:        deleted,
				CurrentGroup:           group.Label,
				Progress:               progress,
				Errors:                 errorLines,
			},
		)
	}

	s.completeJob(ctx, jobID, processed, failed, transferred, deleted, errorLines)
}

// snapshotGroup archives every record in the group (with enrollments) before
// the merge touches them. A failed snapshot is logged and skipped: it must
// not block the merge the admin already confirmed.
func (s *MergeJobService) snapshotGroup(ctx context.Context, jobID uint, group model.MergeJobGroup, secondaryIDs []uint) string {
	if !s.enableSnapshots {
		return ""
	}

	ids := append([]uint{group.PrimaryStudentID}, secondaryIDs...)
	var students []model.Student
	if err := s.db.WithContext(ctx).Preload("Enrollments").Where("id IN ?", ids).Find(&students).Error; err != nil {
		log.Printf("Warning: Failed to load group %q for snapshot: %v", group.Label, err)
		return ""
	}

	key := spaces.SnapshotKey(jobID, group.GroupKey)
	snapshot := map[string]interface{}{
		"job_id":             jobID,
		"group_key":          group.GroupKey,
		"label":              group.Label,
		"primary_student_id": group.PrimaryStudentID,
		"taken_at":           time.Now(),
		"students":           students,
	}
	if err := s.spacesClient.UploadJSON(ctx, key, snapshot); err != nil {
		log.Printf("Warning: Failed to upload snapshot for group %q: %v", group.Label, err)
		return ""
	}
	return key
}

// updateGroup updates one job group row
func (s *MergeJobService) updateGroup(groupID uint, updates map[string]interface{}) {
	updates["updated_at"] = time.Now()
	s.db.Model(&model.MergeJobGroup{}).Where("id = ?", groupID).Updates(updates)
}

// updateJobProgress updates the running counters of a merge job
func (s *MergeJobService) updateJobProgress(jobID uint, processed, failed, transferred, deleted int) {
	s.db.Model(&model.MergeJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"processed_groups":        processed,
		"failed_groups":           failed,
		"transferred_enrollments": transferred,
		"deleted_students":        deleted,
		"updated_at":              time.Now(),
	})
}

// failJob marks a job as failed
func (s *MergeJobService) failJob(ctx context.Context, jobID uint, errorMsg string) {
	now := time.Now()
	s.db.Model(&model.MergeJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":        model.MergeJobStatusFailed,
		"error_message": errorMsg,
		"completed_at":  &now,
	})

	s.notificationService.FailNotification(ctx, jobID,
		"Student Merge Failed",
		errorMsg,
		nil,
	)
}

// completeJob settles the terminal status of a merge job
func (s *MergeJobService) completeJob(ctx context.Context, jobID uint, processed, failed, transferred, deleted int, errorLines []string) {
	now := time.Now()

	var status model.MergeJobStatus
	switch {
	case failed > 0 && processed == 0:
		status = model.MergeJobStatusFailed
	case failed > 0:
		status = model.MergeJobStatusPartial
	default:
		status = model.MergeJobStatusCompleted
	}

	updates := map[string]interface{}{
		"status":                  status,
		"processed_groups":        processed,
		"failed_groups":           failed,
		"transferred_enrollments": transferred,
		"deleted_students":        deleted,
		"completed_at":            &now,
	}
	if len(errorLines) > 0 {
		updates["error_message"] = strings.Join(errorLines, "\n")
	}
	s.db.Model(&model.MergeJob{}).Where("id = ?", jobID).Updates(updates)

	// The merged table invalidates the cached scan.
	s.dedupService.Invalidate(ctx)

	var notificationType model.NotificationType
	var title, message string
	switch status {
	case model.MergeJobStatusFailed:
		notificationType = model.NotificationTypeError
		title = "Student Merge Failed"
		message = fmt.Sprintf("All %d groups failed to merge.", failed)
	case model.MergeJobStatusPartial:
		notificationType = model.NotificationTypeWarning
		title = "Student Merge Partially Complete"
		message = fmt.Sprintf("Merged %d groups (%d failed): %d enrollments transferred, %d records removed.",
			processed, failed, transferred, deleted)
	default:
		notificationType = model.NotificationTypeSuccess
		title = "Student Merge Complete"
		message = fmt.Sprintf("Merged %d groups: %d enrollments transferred, %d records removed.",
			processed, transferred, deleted)
	}

	s.notificationService.UpdateNotificationForJob(ctx, jobID, notificationType, title, message,
		&model.NotificationMetadata{
			TotalGroups:            processed + failed,
			ProcessedGroups:        processed,
			FailedGroups:           failed,
			TransferredEnrollments: transferred,
			DeletedStudents:        deleted,
			Progress:               100,
			Errors:                 errorLines,
		},
	)

	log.Printf("[MERGE-JOB] Job %d finished: %s (%d merged, %d failed, %d transferred, %d deleted)",
		jobID, status, processed, failed, transferred, deleted)
}

// GetJob retrieves a merge job with its groups
func (s *MergeJobService) GetJob(ctx context.Context, jobID uint) (*model.MergeJob, error) {
	var job model.MergeJob

	err := s.db.WithContext(ctx).
		Preload("Groups").
		First(&job, jobID).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("merge job not found")
		}
		return nil, fmt.Errorf("failed to fetch merge job: %w", err)
	}

	return &job, nil
}

// ListJobs retrieves recent merge jobs, newest first
func (s *MergeJobService) ListJobs(ctx context.Context, limit int) ([]model.MergeJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var jobs []model.MergeJob
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to fetch merge jobs: %w", err)
	}

	return jobs, nil
}

// CancelJob cancels an active merge job. Groups already merged stay merged.
func (s *MergeJobService) CancelJob(ctx context.Context, jobID uint) error {
	var job model.MergeJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("merge job not found")
		}
		return fmt.Errorf("failed to fetch merge job: %w", err)
	}

	if job.IsComplete() {
		return fmt.Errorf("job is already complete")
	}

	s.activeJobsMu.RLock()
	cancel, exists := s.activeJobs[jobID]
	s.activeJobsMu.RUnlock()

	if exists {
		cancel()
	}

	return nil
}

// groupForSnapshot loads a group row and resolves its snapshot key.
func (s *MergeJobService) groupForSnapshot(ctx context.Context, jobID, groupID uint) (*model.MergeJobGroup, error) {
	var group model.MergeJobGroup
	if err := s.db.WithContext(ctx).Where("id = ? AND job_id = ?", groupID, jobID).First(&group).Error; err != nil {
		return nil, fmt.Errorf("merge job group not found: %w", err)
	}
	if group.SnapshotKey == "" || s.spacesClient == nil {
		return nil, ErrSnapshotUnavailable
	}
	return &group, nil
}

// GroupSnapshot fetches the pre-merge snapshot of one job group from object
// storage: the primary and secondary records with their enrollments as they
// were before the merge. This is the recovery path after a bad merge.
func (s *MergeJobService) GroupSnapshot(ctx context.Context, jobID, groupID uint) (json.RawMessage, error) {
	group, err := s.groupForSnapshot(ctx, jobID, groupID)
	if err != nil {
		return nil, err
	}
	data, err := s.spacesClient.Download(ctx, group.SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot %s: %w", group.SnapshotKey, err)
	}
	return json.RawMessage(data), nil
}

// GroupSnapshotURL returns a short-lived presigned URL so the admin UI can
// hand the snapshot file to the browser without proxying it.
func (s *MergeJobService) GroupSnapshotURL(ctx context.Context, jobID, groupID uint) (string, time.Duration, error) {
	group, err := s.groupForSnapshot(ctx, jobID, groupID)
	if err != nil {
		return "", 0, err
	}
	url, err := s.spacesClient.PresignedURL(group.SnapshotKey, snapshotURLExpiry)
	if err != nil {
		return "", 0, fmt.Errorf("failed to presign snapshot %s: %w", group.SnapshotKey, err)
	}
	return url, snapshotURLExpiry, nil
}

// CleanupOldJobs removes completed merge jobs older than the given duration,
// together with their archived snapshots.
func (s *MergeJobService) CleanupOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	var expiredIDs []uint
	if err := s.db.WithContext(ctx).Model(&model.MergeJob{}).
		Where("completed_at IS NOT NULL AND completed_at < ?", cutoff).
		Pluck("id", &expiredIDs).Error; err != nil {
		return 0, fmt.Errorf("failed to list old merge jobs: %w", err)
	}
	if len(expiredIDs) == 0 {
		return 0, nil
	}

	// Snapshots go first: once the job rows are gone nothing references the
	// objects. A failed object delete only logs; the rows are removed anyway
	// and the orphaned objects age out with the bucket lifecycle rule.
	if s.spacesClient != nil {
		for _, jobID := range expiredIDs {
			prefix := spaces.SnapshotPrefix(jobID)
			keys, err := s.spacesClient.List(ctx, prefix)
			if err != nil {
				log.Printf("Warning: Failed to list snapshots under %s: %v", prefix, err)
				continue
			}
			for _, key := range keys {
				if err := s.spacesClient.Delete(ctx, key); err != nil {
					log.Printf("Warning: Failed to delete snapshot %s: %v", key, err)
				}
			}
		}
	}

	result := s.db.WithContext(ctx).Where("id IN ?", expiredIDs).Delete(&model.MergeJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup old merge jobs: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d old merge jobs", result.RowsAffected)
	}

	return result.RowsAffected, nil
}

// FailStuckJobs marks processing jobs as failed when they have outlived the
// job timeout, e.g. after a crash mid-run.
func (s *MergeJobService) FailStuckJobs(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-2 * mergeJobTimeout)

	result := s.db.WithContext(ctx).Model(&model.MergeJob{}).
		Where("status IN ? AND updated_at < ?",
			[]model.MergeJobStatus{model.MergeJobStatusPending, model.MergeJobStatusProcessing}, cutoff).
		Updates(map[string]interface{}{
			"status":        model.MergeJobStatusFailed,
			"error_message": "job stalled and was failed by the watchdog",
			"completed_at":  time.Now(),
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail stuck merge jobs: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		log.Printf("[WATCHDOG] Failed %d stuck merge jobs", result.RowsAffected)
	}

	return result.RowsAffected, nil
}
