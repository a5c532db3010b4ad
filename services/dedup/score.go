package dedup

import (
	"strings"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

// Scoring weights for picking a group's default primary record.
const (
	scoreStatusActive   = 1000
	scoreStatusProspect = 500
	scorePerEnrollment  = 100
	scorePerField       = 10
	scoreAgeCapDays     = 365
)

// ScoreBreakdown is the quality score of a student record, split by
// contribution so callers (and tests) can see why a record won.
type ScoreBreakdown struct {
	Status      int `json:"status"`
	Enrollments int `json:"enrollments"`
	Profile     int `json:"profile"`
	Age         int `json:"age"`
}

// Total returns the combined score.
func (b ScoreBreakdown) Total() int {
	return b.Status + b.Enrollments + b.Profile + b.Age
}

// ScoreStudent computes the record-quality heuristic: active status and
// enrollment history dominate, filled-in profile fields and record age break
// ties. Monotonic: more enrollments or a better status never lowers the score.
func ScoreStudent(s model.Student, now time.Time) ScoreBreakdown {
	var b ScoreBreakdown

	switch s.Status {
	case model.StudentStatusActive:
		b.Status = scoreStatusActive
	case model.StudentStatusProspect:
		b.Status = scoreStatusProspect
	}

	b.Enrollments = scorePerEnrollment * len(s.Enrollments)

	for _, v := range []string{
		s.EnglishName,
		s.StudentPhone,
		s.ParentPhone,
		s.ParentName,
		s.BirthDate,
		s.Address,
		s.AttendanceNumber,
		s.Memo,
	} {
		if strings.TrimSpace(v) != "" {
			b.Profile += scorePerField
		}
	}

	// Older records are better representatives, capped at one year. A zero or
	// future creation timestamp contributes nothing.
	if !s.CreatedAt.IsZero() && s.CreatedAt.Before(now) {
		days := int(now.Sub(s.CreatedAt).Hours() / 24)
		if days > scoreAgeCapDays {
			days = scoreAgeCapDays
		}
		b.Age = days
	}

	return b
}
