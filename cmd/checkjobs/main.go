package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MergeJob mirrors the model for checking
type MergeJob struct {
	ID                     uint `gorm:"primaryKey"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
	Status                 string
	TotalGroups            int
	ProcessedGroups        int
	FailedGroups           int
	TransferredEnrollments int
	DeletedStudents        int
	CreatedByUserID        uint
	StartedAt              *time.Time
	CompletedAt            *time.Time
	ErrorMessage           string
}

func (MergeJob) TableName() string {
	return "merge_jobs"
}

// MergeJobGroup mirrors the model for checking
type MergeJobGroup struct {
	ID               uint `gorm:"primaryKey"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	JobID            uint
	GroupKey         string
	Label            string
	PrimaryStudentID uint
	SecondaryIDs     json.RawMessage
	Status           string
	Transferred      int
	Deleted          int
	ErrorMessage     string
	SnapshotKey      string
}

func (MergeJobGroup) TableName() string {
	return "merge_job_groups"
}

// UserNotification mirrors the model for checking
type UserNotification struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint
	Type       string
	Category   string
	Title      string
	Message    string
	Read       bool
	MergeJobID *uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (UserNotification) TableName() string {
	return "user_notifications"
}

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Build database URL from individual variables
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER_NAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}

	dbURL := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	// Connect to database
	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	fmt.Println("========================================")
	fmt.Println("MERGE JOBS STATUS CHECK")
	fmt.Println("========================================")

	// Get recent merge jobs
	var jobs []MergeJob
	if err := db.Order("created_at DESC").Limit(20).Find(&jobs).Error; err != nil {
		log.Fatalf("Failed to fetch jobs: %v", err)
	}

	if len(jobs) == 0 {
		fmt.Println("\n❌ No merge jobs found in database")
	} else {
		fmt.Printf("\n📋 Found %d merge jobs:\n\n", len(jobs))

		for _, job := range jobs {
			progress := 0
			if job.TotalGroups > 0 {
				progress = (job.ProcessedGroups * 100) / job.TotalGroups
			}

			statusIcon := "⏳"
			switch job.Status {
			case "completed":
				statusIcon = "✅"
			case "failed":
				statusIcon = "❌"
			case "processing":
				statusIcon = "🔄"
			case "partially_completed":
				statusIcon = "⚠️"
			case "cancelled":
				statusIcon = "🚫"
			}

			fmt.Printf("─────────────────────────────────────\n")
			fmt.Printf("%s Job ID: %d\n", statusIcon, job.ID)
			fmt.Printf("   Status: %s\n", job.Status)
			fmt.Printf("   User ID: %d\n", job.CreatedByUserID)
			fmt.Printf("   Progress: %d%% (%d/%d groups, %d failed)\n",
				progress, job.ProcessedGroups, job.TotalGroups, job.FailedGroups)
			fmt.Printf("   Enrollments transferred: %d, students deleted: %d\n",
				job.TransferredEnrollments, job.DeletedStudents)
			fmt.Printf("   Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
			if job.StartedAt != nil {
				fmt.Printf("   Started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
			}
			if job.CompletedAt != nil {
				fmt.Printf("   Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			if job.ErrorMessage != "" {
				fmt.Printf("   Error: %s\n", job.ErrorMessage)
			}

			// Get groups for this job
			var groups []MergeJobGroup
			db.Where("job_id = ?", job.ID).Order("id ASC").Find(&groups)
			if len(groups) > 0 {
				fmt.Printf("   Groups (%d):\n", len(groups))
				for _, g := range groups {
					groupIcon := "○"
					switch g.Status {
					case "completed":
						groupIcon = "●"
					case "failed":
						groupIcon = "✗"
					case "processing":
						groupIcon = "◐"
					}
					fmt.Printf("     %s [%s] %s (primary %d, +%d transferred, -%d deleted)\n",
						groupIcon, g.Status, truncate(g.Label, 40), g.PrimaryStudentID, g.Transferred, g.Deleted)
					if g.ErrorMessage != "" {
						fmt.Printf("       Error: %s\n", g.ErrorMessage)
					}
				}
			}
		}
	}

	// Check active jobs (pending or processing)
	var activeJobs []MergeJob
	db.Where("status IN ?", []string{"pending", "processing"}).Find(&activeJobs)

	fmt.Println("\n========================================")
	fmt.Printf("ACTIVE JOBS: %d\n", len(activeJobs))
	fmt.Println("========================================")

	if len(activeJobs) > 0 {
		for _, job := range activeJobs {
			fmt.Printf("🔄 Job %d - %s (%d/%d groups, User: %d)\n",
				job.ID, job.Status, job.ProcessedGroups, job.TotalGroups, job.CreatedByUserID)
		}
	} else {
		fmt.Println("No active jobs currently running")
	}

	// Check related notifications
	fmt.Println("\n========================================")
	fmt.Println("RELATED NOTIFICATIONS")
	fmt.Println("========================================")

	var notifications []UserNotification
	db.Where("category = ?", "student_merge").Order("created_at DESC").Limit(10).Find(&notifications)

	if len(notifications) == 0 {
		fmt.Println("No merge notifications found")
	} else {
		for _, n := range notifications {
			readIcon := "○"
			if n.Read {
				readIcon = "●"
			}
			jobIDStr := "N/A"
			if n.MergeJobID != nil {
				jobIDStr = fmt.Sprintf("%d", *n.MergeJobID)
			}
			fmt.Printf("%s [%s] Job:%s - %s: %s\n",
				readIcon, n.Type, jobIDStr, n.Title, truncate(n.Message, 50))
		}
	}

	fmt.Println("\n========================================")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
