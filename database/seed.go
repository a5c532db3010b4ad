package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
	"github.com/haneulsoft/hakwon-api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedClassOfferings(); err != nil {
		return fmt.Errorf("failed to seed classes: %w", err)
	}

	if err := s.SeedStudents(); err != nil {
		return fmt.Errorf("failed to seed students: %w", err)
	}

	if err := s.SeedAppSettings(); err != nil {
		return fmt.Errorf("failed to seed app settings: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	// Check if admin already exists
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.UserRoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	// Get admin credentials from environment variables
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	// Hash password
	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "원장",
		Role:         model.UserRoleAdmin,
		TokenVersion: 0,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedClassOfferings creates sample classes
func (s *Seeder) SeedClassOfferings() error {
	var count int64
	if err := s.db.Model(&model.ClassOffering{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Classes already exist, skipping...")
		return nil
	}

	classes := []model.ClassOffering{
		{Subject: "math", Name: "A반", Teacher: "박선생", Schedule: "월수금 16:00-17:30", Capacity: 12},
		{Subject: "math", Name: "B반", Teacher: "박선생", Schedule: "화목 16:00-18:00", Capacity: 12},
		{Subject: "english", Name: "A반", Teacher: "김선생", Schedule: "월수금 17:30-19:00", Capacity: 10},
		{Subject: "english", Name: "B반", Teacher: "김선생", Schedule: "화목 18:00-19:30", Capacity: 10},
		{Subject: "science", Name: "C반", Teacher: "이선생", Schedule: "토 10:00-13:00", Capacity: 15},
	}

	if err := s.db.Create(&classes).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d classes\n", len(classes))
	return nil
}

// SeedStudents creates sample students, deliberately including the duplicate
// shapes the legacy import produces: abbreviated school names, opaque IDs and
// re-registered withdrawn records.
func (s *Seeder) SeedStudents() error {
	var count int64
	if err := s.db.Model(&model.Student{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Students already exist, skipping...")
		return nil
	}

	ended := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)

	students := []model.Student{
		// Duplicate pair: semantic ID with full school name vs. opaque ID
		// with abbreviated school. The scanner should group these.
		{
			ExternalID: "김민수_대구초등학교_초3", Name: "김민수", School: "대구초등학교", Grade: "초3",
			Status: model.StudentStatusActive, ParentPhone: "010-1234-5678",
			Enrollments: []model.Enrollment{
				{Subject: "math", ClassName: "A반", Teacher: "박선생"},
				{Subject: "english", ClassName: "A반", Teacher: "김선생"},
			},
		},
		{
			ExternalID: "20241104000000001742", Name: "김민수", School: "대구초", Grade: "초3",
			Status: model.StudentStatusWithdrawn, BirthDate: "2016-05-02", Memo: "11월 퇴원 후 재등록 상담",
			Enrollments: []model.Enrollment{
				{Subject: "math", ClassName: "A반", Teacher: "박선생", EndDate: &ended},
			},
		},

		// Duplicate pair on the same abbreviated school
		{
			ExternalID: "이서연_한울중_중1", Name: "이서연", School: "한울중", Grade: "중1",
			Status: model.StudentStatusActive, ParentPhone: "010-2345-6789",
			Enrollments: []model.Enrollment{
				{Subject: "english", ClassName: "B반", Teacher: "김선생"},
			},
		},
		{
			ExternalID: "98234", Name: "이서연", School: "한울중학교", Grade: "중1",
			Status: model.StudentStatusProspect, StudentPhone: "010-9876-5432",
		},

		// Disambiguated pair: two distinct students sharing a name
		{
			ExternalID: "박지훈A_동성초_초5", Name: "박지훈A", School: "동성초", Grade: "초5",
			Status: model.StudentStatusActive,
			Enrollments: []model.Enrollment{
				{Subject: "math", ClassName: "B반", Teacher: "박선생"},
			},
		},
		{
			ExternalID: "박지훈B_동성초_초5", Name: "박지훈B", School: "동성초", Grade: "초5",
			Status: model.StudentStatusActive,
			Enrollments: []model.Enrollment{
				{Subject: "science", ClassName: "C반", Teacher: "이선생"},
			},
		},

		// Unique records
		{
			ExternalID: "최유진_수성고_고1", Name: "최유진", School: "수성고", Grade: "고1",
			Status: model.StudentStatusActive, ParentName: "최부모", ParentPhone: "010-3456-7890",
			Enrollments: []model.Enrollment{
				{Subject: "math", ClassName: "B반", Teacher: "박선생"},
				{Subject: "english", ClassName: "B반", Teacher: "김선생"},
			},
		},
		{
			ExternalID: "정다은_대구초_초4", Name: "정다은", School: "대구초등학교", Grade: "초4",
			Status: model.StudentStatusOnHold, Memo: "3월 복귀 예정",
		},
	}

	if err := s.db.Create(&students).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d students\n", len(students))
	return nil
}

// SeedAppSettings creates default application settings
func (s *Seeder) SeedAppSettings() error {
	// Check if settings already exist
	var count int64
	if err := s.db.Model(&model.AppSetting{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  App settings already exist, skipping...")
		return nil
	}

	now := time.Now()
	settings := []model.AppSetting{
		// System Information
		{
			Key:         "system.name",
			Value:       "Hakwon API",
			Type:        "string",
			Description: "Application name",
			IsPublic:    true,
			Category:    "system",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "system.version",
			Value:       "1.0.0",
			Type:        "string",
			Description: "Current application version",
			IsPublic:    true,
			Category:    "system",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "system.maintenance_mode",
			Value:       "false",
			Type:        "bool",
			Description: "Enable maintenance mode to restrict access",
			IsPublic:    true,
			Category:    "system",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Rate Limiting
		{
			Key:         "rate_limit.api.requests_per_minute",
			Value:       "60",
			Type:        "int",
			Description: "Maximum API requests per minute per user",
			IsPublic:    false,
			Category:    "rate_limit",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Feature Flags
		{
			Key:         "feature.registration_enabled",
			Value:       "true",
			Type:        "bool",
			Description: "Allow new staff registrations",
			IsPublic:    true,
			Category:    "feature",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "feature.merge_snapshots_required",
			Value:       "false",
			Type:        "bool",
			Description: "Refuse merges when the pre-merge snapshot upload fails",
			IsPublic:    false,
			Category:    "feature",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Merge Settings
		{
			Key:         "merge.scan_cache_hours",
			Value:       "24",
			Type:        "int",
			Description: "Hours a duplicate scan result stays cached",
			IsPublic:    false,
			Category:    "merge",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "merge.job_retention_days",
			Value:       "90",
			Type:        "int",
			Description: "Days to retain completed merge jobs",
			IsPublic:    false,
			Category:    "merge",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Security Settings
		{
			Key:         "security.password_min_length",
			Value:       "8",
			Type:        "int",
			Description: "Minimum password length",
			IsPublic:    true,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "security.jwt_expiry_hours",
			Value:       "24",
			Type:        "int",
			Description: "JWT token expiry time in hours",
			IsPublic:    false,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "security.max_login_attempts",
			Value:       "5",
			Type:        "int",
			Description: "Maximum failed login attempts before lockout",
			IsPublic:    false,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "security.lockout_duration_minutes",
			Value:       "15",
			Type:        "int",
			Description: "Account lockout duration after max failed attempts",
			IsPublic:    false,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Analytics
		{
			Key:         "analytics.retention_days",
			Value:       "90",
			Type:        "int",
			Description: "Days to retain analytics data",
			IsPublic:    false,
			Category:    "analytics",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	if err := s.db.Create(&settings).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d app settings\n", len(settings))
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
