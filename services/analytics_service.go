package services

import (
	"context"
	"fmt"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
	"gorm.io/gorm"
)

// AnalyticsService handles analytics and reporting
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{
		db: db,
	}
}

// DashboardStats represents overall academy statistics
type DashboardStats struct {
	TotalStudents          int64 `json:"total_students"`
	ActiveStudents         int64 `json:"active_students"`
	OnHoldStudents         int64 `json:"on_hold_students"`
	WithdrawnStudents      int64 `json:"withdrawn_students"`
	ProspectStudents       int64 `json:"prospect_students"`
	TotalClasses           int64 `json:"total_classes"`
	ActiveEnrollments      int64 `json:"active_enrollments"`
	TotalEnrollments       int64 `json:"total_enrollments"`
	TotalStaff             int64 `json:"total_staff"`
	ActiveStaff            int64 `json:"active_staff_7d"`
	MergeJobsCompleted     int64 `json:"merge_jobs_completed"`
	RecordsMergedAway      int64 `json:"records_merged_away"`
	EnrollmentsTransferred int64 `json:"enrollments_transferred"`
	NewStudentsToday       int64 `json:"new_students_today"`
}

// GetDashboardStats retrieves overall academy statistics
func (s *AnalyticsService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	if err := s.db.Model(&model.Student{}).Count(&stats.TotalStudents).Error; err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	statusCounts := []struct {
		status model.StudentStatus
		dest   *int64
	}{
		{model.StudentStatusActive, &stats.ActiveStudents},
		{model.StudentStatusOnHold, &stats.OnHoldStudents},
		{model.StudentStatusWithdrawn, &stats.WithdrawnStudents},
		{model.StudentStatusProspect, &stats.ProspectStudents},
	}
	for _, sc := range statusCounts {
		if err := s.db.Model(&model.Student{}).
			Where("status = ?", sc.status).
			Count(sc.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s students: %w", sc.status, err)
		}
	}

	if err := s.db.Model(&model.ClassOffering{}).Count(&stats.TotalClasses).Error; err != nil {
		return nil, fmt.Errorf("failed to count classes: %w", err)
	}

	if err := s.db.Model(&model.Enrollment{}).Count(&stats.TotalEnrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}

	if err := s.db.Model(&model.Enrollment{}).
		Where("end_date IS NULL").
		Count(&stats.ActiveEnrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count active enrollments: %w", err)
	}

	if err := s.db.Model(&model.User{}).Count(&stats.TotalStaff).Error; err != nil {
		return nil, fmt.Errorf("failed to count staff: %w", err)
	}

	// Staff active in the last 7 days
	sevenDaysAgo := time.Now().AddDate(0, 0, -7)
	if err := s.db.Model(&model.UserActivity{}).
		Where("created_at >= ?", sevenDaysAgo).
		Distinct("user_id").
		Count(&stats.ActiveStaff).Error; err != nil {
		return nil, fmt.Errorf("failed to count active staff: %w", err)
	}

	// Merge history
	if err := s.db.Model(&model.MergeJob{}).
		Where("status IN ?", []model.MergeJobStatus{
			model.MergeJobStatusCompleted,
			model.MergeJobStatusPartial,
		}).
		Count(&stats.MergeJobsCompleted).Error; err != nil {
		return nil, fmt.Errorf("failed to count merge jobs: %w", err)
	}

	var mergeTotals struct {
		Deleted     int64
		Transferred int64
	}
	if err := s.db.Model(&model.MergeJob{}).
		Select("COALESCE(SUM(deleted_students), 0) as deleted, COALESCE(SUM(transferred_enrollments), 0) as transferred").
		Scan(&mergeTotals).Error; err != nil {
		return nil, fmt.Errorf("failed to sum merge totals: %w", err)
	}
	stats.RecordsMergedAway = mergeTotals.Deleted
	stats.EnrollmentsTransferred = mergeTotals.Transferred

	today := time.Now().Truncate(24 * time.Hour)
	if err := s.db.Model(&model.Student{}).
		Where("created_at >= ?", today).
		Count(&stats.NewStudentsToday).Error; err != nil {
		return nil, fmt.Errorf("failed to count new students: %w", err)
	}

	return stats, nil
}

// SubjectHeadcount represents active enrollment counts for one subject
type SubjectHeadcount struct {
	Subject  string `json:"subject"`
	Classes  int64  `json:"classes"`
	Students int64  `json:"students"`
}

// GetSubjectHeadcounts returns active enrollment counts grouped by subject
func (s *AnalyticsService) GetSubjectHeadcounts(ctx context.Context) ([]SubjectHeadcount, error) {
	var rows []SubjectHeadcount

	err := s.db.Model(&model.Enrollment{}).
		Select("subject, COUNT(DISTINCT class_name) as classes, COUNT(DISTINCT student_id) as students").
		Where("end_date IS NULL").
		Group("subject").
		Order("students DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate subject headcounts: %w", err)
	}

	return rows, nil
}

// TimeSeriesPoint represents one day in a time series
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// GetEnrollmentTimeSeries returns new enrollments per day for the last N days
func (s *AnalyticsService) GetEnrollmentTimeSeries(ctx context.Context, days int) ([]TimeSeriesPoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var points []TimeSeriesPoint
	err := s.db.Model(&model.Enrollment{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build enrollment time series: %w", err)
	}

	return points, nil
}

// LogActivity records a staff activity for analytics
func (s *AnalyticsService) LogActivity(ctx context.Context, userID uint, activityType model.ActivityType, resourceType string, resourceID uint, ipAddress string, userAgent string) error {
	activity := model.UserActivity{
		UserID:       userID,
		ActivityType: activityType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		Metadata:     "{}",
	}

	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	return nil
}
