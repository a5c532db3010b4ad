package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Get job ID from args or use the latest job
	var jobID uint
	if len(os.Args) > 1 {
		fmt.Sscanf(os.Args[1], "%d", &jobID)
	}

	// Connect to database
	db, err := connectDatabase()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Get job with groups
	var job model.MergeJob
	query := db.Preload("Groups").Preload("CreatedBy")
	if jobID > 0 {
		err = query.First(&job, jobID).Error
	} else {
		err = query.Order("id DESC").First(&job).Error
	}
	if err != nil {
		log.Fatalf("Failed to find merge job: %v", err)
	}

	fmt.Println("══════════════════════════════════════════════════════════════")
	fmt.Printf("  MERGE JOB #%d - DETAILED REPORT\n", job.ID)
	fmt.Println("══════════════════════════════════════════════════════════════")

	// Job metadata
	fmt.Printf("\n📋 JOB METADATA:\n")
	fmt.Printf("   Status:       %s\n", job.Status)
	fmt.Printf("   Started by:   %s (ID: %d)\n", job.CreatedBy.Name, job.CreatedByUserID)
	fmt.Printf("   Total Groups: %d\n", job.TotalGroups)
	fmt.Printf("   Processed:    %d\n", job.ProcessedGroups)
	fmt.Printf("   Failed:       %d\n", job.FailedGroups)
	fmt.Printf("   Enrollments transferred: %d\n", job.TransferredEnrollments)
	fmt.Printf("   Students deleted:        %d\n", job.DeletedStudents)

	// Timing
	fmt.Printf("\n⏱️  TIMING:\n")
	fmt.Printf("   Created At:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05.000"))
	if job.StartedAt != nil {
		fmt.Printf("   Started At:   %s\n", job.StartedAt.Format("2006-01-02 15:04:05.000"))
		fmt.Printf("   Queue Time:   %s\n", job.StartedAt.Sub(job.CreatedAt))
	}
	if job.CompletedAt != nil {
		fmt.Printf("   Completed At: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05.000"))
		if job.StartedAt != nil {
			processingTime := job.CompletedAt.Sub(*job.StartedAt)
			fmt.Printf("   Processing:   %s\n", processingTime)
			if job.TotalGroups > 0 {
				avgPerGroup := processingTime / time.Duration(job.TotalGroups)
				fmt.Printf("   Avg/Group:    %s\n", avgPerGroup)
			}
		}
		totalTime := job.CompletedAt.Sub(job.CreatedAt)
		fmt.Printf("   Total Time:   %s\n", totalTime)
	}

	// Groups detail
	fmt.Printf("\n📦 GROUPS DETAIL (%d groups):\n", len(job.Groups))
	for i, g := range job.Groups {
		statusIcon := "⏳"
		switch g.Status {
		case model.MergeJobGroupStatusCompleted:
			statusIcon = "✅"
		case model.MergeJobGroupStatusFailed:
			statusIcon = "❌"
		case model.MergeJobGroupStatusProcessing:
			statusIcon = "🔄"
		}

		fmt.Printf("   %s [%d] %s\n", statusIcon, i+1, g.Label)
		fmt.Printf("      Key:         %s\n", g.GroupKey)
		fmt.Printf("      Primary:     student %d\n", g.PrimaryStudentID)

		var secondaryIDs []uint
		if len(g.SecondaryIDs) > 0 {
			if err := json.Unmarshal(g.SecondaryIDs, &secondaryIDs); err == nil {
				fmt.Printf("      Secondaries: %v\n", secondaryIDs)
			}
		}
		fmt.Printf("      Result:      %d enrollments transferred, %d records deleted\n", g.Transferred, g.Deleted)
		if g.SnapshotKey != "" {
			fmt.Printf("      Snapshot:    %s\n", g.SnapshotKey)
		}
		if g.ErrorMessage != "" {
			fmt.Printf("      ⚠️  Error:    %s\n", g.ErrorMessage)
		}
	}

	// Summary
	fmt.Println("\n══════════════════════════════════════════════════════════════")
	if job.Status == model.MergeJobStatusCompleted {
		fmt.Println("  ✅ JOB COMPLETED SUCCESSFULLY")
	} else if job.Status == model.MergeJobStatusPartial {
		fmt.Println("  ⚠️  JOB PARTIALLY COMPLETED")
	} else if job.Status == model.MergeJobStatusFailed {
		fmt.Println("  ❌ JOB FAILED")
		if job.ErrorMessage != "" {
			fmt.Printf("     Error: %s\n", job.ErrorMessage)
		}
	} else {
		fmt.Printf("  ⏳ JOB STATUS: %s\n", job.Status)
	}
	fmt.Println("══════════════════════════════════════════════════════════════")
}

func connectDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER_NAME", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "hakwon"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_SSL_MODE", "disable"),
	)

	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
